package service

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"grading_backend/internal/model"
	"grading_backend/internal/util"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func mustCreate(t *testing.T, h *harness, targets []string, choice string, scale float64) *model.Submission {
	t.Helper()
	sub, err := h.svc.CreateSubmission(context.Background(), "a1", "grader", answers(targets, choice, scale), false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sub
}

func TestCreateSubmissionRoundTrip(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	created := mustCreate(t, h, []string{"s1", "s2"}, "Yes", 3)
	assertClose(t, "score", created.Score, 15)
	if created.SubmissionReleaseNumber != 1 || !created.SubmittedAt.Equal(fixedNow) {
		t.Fatalf("unexpected snapshot: %+v", created)
	}

	subs, err := h.svc.GetSubmissionsByAssessmentAndUser(ctx, "a1", "grader")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d submissions", len(subs))
	}
	sum := 0.0
	for _, a := range subs[0].Answers {
		sum += a.Base().Score
	}
	assertClose(t, "answer sum", sum, subs[0].Score)

	for _, student := range []string{"s1", "s2"} {
		r, err := h.results.Find(ctx, "a1", student)
		if err != nil {
			t.Fatalf("result for %s: %v", student, err)
		}
		if len(r.Marks) != 1 || r.Marks[0].SubmissionID != created.ID || r.Marks[0].MarkerID != "grader" {
			t.Fatalf("unexpected marks for %s: %+v", student, r.Marks)
		}
		assertClose(t, "average", r.AverageScore, 15)
	}
}

func TestSubmissionAnswersCarryIDs(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	created := mustCreate(t, h, []string{"s1"}, "Yes", 3)
	seen := make(map[string]bool)
	for _, a := range created.Answers {
		id := a.Base().ID
		if id == "" || seen[id] {
			t.Fatalf("answer %s has id %q", a.Base().QuestionID, id)
		}
		seen[id] = true
	}

	updated, err := h.svc.UpdateSubmission(ctx, created.ID, "grader", "acc-grader", answers([]string{"s1"}, "No", 1), false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, a := range updated.Answers {
		if a.Base().ID == "" || seen[a.Base().ID] {
			t.Fatalf("replacement answer %s has id %q", a.Base().QuestionID, a.Base().ID)
		}
	}

	regraded, err := h.svc.RegradeSubmission(ctx, created.ID)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	for i, a := range regraded.Answers {
		if a.Base().ID != updated.Answers[i].Base().ID {
			t.Fatalf("regrade changed answer id %q to %q", updated.Answers[i].Base().ID, a.Base().ID)
		}
	}
}

func TestCreateSubmissionScenarios(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness)
		userID  string
		answers []model.Answer
		wantNF  bool
		wantBR  bool
	}{
		{name: "unknown assessment", mutate: func(h *harness) { delete(h.assessments.items, "a1") }, userID: "grader", answers: answers([]string{"s1"}, "Yes", 3), wantNF: true},
		{name: "unknown user", userID: "ghost", answers: answers([]string{"s1"}, "Yes", 3), wantNF: true},
		{name: "window not open", mutate: func(h *harness) { h.svc.Now = func() time.Time { return windowOpen.Add(-time.Hour) } }, userID: "grader", answers: answers([]string{"s1"}, "Yes", 3), wantBR: true},
		{name: "window closed", mutate: func(h *harness) { h.svc.Now = func() time.Time { return windowEnd.Add(time.Hour) } }, userID: "grader", answers: answers([]string{"s1"}, "Yes", 3), wantBR: true},
		{name: "invalid option", userID: "grader", answers: answers([]string{"s1"}, "Maybe", 3), wantBR: true},
		{name: "individual with many targets", mutate: func(h *harness) { h.assessments.items["a1"].Granularity = model.GranularityIndividual }, userID: "grader", answers: answers([]string{"s1", "s2"}, "Yes", 3), wantBR: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			if tc.mutate != nil {
				tc.mutate(h)
			}
			_, err := h.svc.CreateSubmission(context.Background(), "a1", tc.userID, tc.answers, false)
			switch {
			case tc.wantNF && !util.IsNotFound(err):
				t.Fatalf("expected NotFoundError, got %v", err)
			case tc.wantBR && !util.IsBadRequest(err):
				t.Fatalf("expected BadRequestError, got %v", err)
			}
			if len(h.submissions.items) != 0 || len(h.results.results) != 0 {
				t.Fatal("nothing may be persisted on a rejected submission")
			}
		})
	}
}

func TestCreateSubmissionEnforcesUniqueTargets(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	mustCreate(t, h, []string{"s1", "s2"}, "Yes", 3)

	_, err := h.svc.CreateSubmission(ctx, "a1", "grader", answers([]string{"s2", "s3"}, "No", 1), false)
	if !util.IsBadRequest(err) || !strings.Contains(err.Error(), "already submitted") {
		t.Fatalf("expected duplicate target rejection, got %v", err)
	}

	// 其他评分者不受影响
	if _, err := h.svc.CreateSubmission(ctx, "a1", "other", answers([]string{"s2"}, "No", 1), false); err != nil {
		t.Fatalf("other grader: %v", err)
	}

	h.svc.SetPolicy(SubmissionPolicy{EnforceUniqueTargets: false})
	if _, err := h.svc.CreateSubmission(ctx, "a1", "grader", answers([]string{"s2"}, "No", 1), false); err != nil {
		t.Fatalf("policy disabled: %v", err)
	}
	r, _ := h.results.Find(ctx, "a1", "s2")
	if len(r.Marks) != 3 {
		t.Fatalf("expected three marks for s2, got %d", len(r.Marks))
	}
}

func TestUpdateSubmissionPermissions(t *testing.T) {
	tests := []struct {
		name      string
		editable  bool
		draft     bool
		bumpRel   bool
		userID    string
		accountID string
		wantBR    bool
	}{
		{name: "owner while editable", editable: true, userID: "grader", accountID: "acc-grader"},
		{name: "non-owner while editable", editable: true, userID: "other", accountID: "acc-other", wantBR: true},
		{name: "non-owner non-editable finalized", userID: "other", accountID: "acc-other", wantBR: true},
		{name: "owner non-editable finalized", userID: "grader", accountID: "acc-grader", wantBR: true},
		{name: "owner non-editable draft", draft: true, userID: "grader", accountID: "acc-grader"},
		{name: "owner after release change", bumpRel: true, userID: "grader", accountID: "acc-grader"},
		{name: "course faculty bypass", userID: "prof", accountID: "acc-prof"},
		{name: "admin bypass", userID: "admin", accountID: "acc-admin"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			sub, err := h.svc.CreateSubmission(ctx, "a1", "grader", answers([]string{"s1"}, "Yes", 3), tc.draft)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			a := h.assessments.items["a1"]
			a.AreSubmissionsEditable = tc.editable
			if tc.bumpRel {
				a.ReleaseNumber++
			}

			updated, err := h.svc.UpdateSubmission(ctx, sub.ID, tc.userID, tc.accountID, answers([]string{"s1"}, "No", 5), false)
			if tc.wantBR {
				if !util.IsBadRequest(err) {
					t.Fatalf("expected BadRequestError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			assertClose(t, "score", updated.Score, 10)
			if updated.SubmissionReleaseNumber != a.ReleaseNumber {
				t.Fatalf("release number not refreshed: %d", updated.SubmissionReleaseNumber)
			}
			r, _ := h.results.Find(ctx, "a1", "s1")
			if len(r.Marks) != 1 || r.Marks[0].MarkerID != tc.userID {
				t.Fatalf("mark not updated in place: %+v", r.Marks)
			}
			assertClose(t, "mark", r.Marks[0].Score, 10)
		})
	}
}

func TestUpdateSubmissionClearsAdjustedScoreOnlyWhenTotalChanges(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)

	if _, err := h.svc.AdjustSubmissionScore(ctx, sub.ID, 12); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	same, err := h.svc.UpdateSubmission(ctx, sub.ID, "grader", "acc-grader", answers([]string{"s1"}, "Yes", 3), false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if same.AdjustedScore == nil || *same.AdjustedScore != 12 {
		t.Fatalf("adjusted score must survive an unchanged total: %v", same.AdjustedScore)
	}

	changed, err := h.svc.UpdateSubmission(ctx, sub.ID, "grader", "acc-grader", answers([]string{"s1"}, "No", 3), false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changed.AdjustedScore != nil {
		t.Fatalf("adjusted score must be cleared, got %v", *changed.AdjustedScore)
	}
}

func TestUpdateSubmissionRequiresExistingMarkEntry(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)
	h.results.dropMark("a1", "s1", sub.ID)

	_, err := h.svc.UpdateSubmission(ctx, sub.ID, "grader", "acc-grader", answers([]string{"s1"}, "No", 3), false)
	if !util.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

// 更新按顺序写入：提交先落库，台账逐个学生更新，不回滚也不清理被移除的学生
func TestUpdateSubmissionChangingTargetsWritesSequentially(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1", "s2"}, "Yes", 3)

	_, err := h.svc.UpdateSubmission(ctx, sub.ID, "grader", "acc-grader", answers([]string{"s1", "s3"}, "No", 3), false)
	if !util.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for the newly selected student, got %v", err)
	}

	stored, _ := h.submissions.FindByID(ctx, sub.ID)
	tms, _ := model.TeamMemberSelection(stored.Answers)
	if tms == nil || strings.Join(tms.SelectedUserIDs, ",") != "s1,s3" {
		t.Fatalf("stored targets = %+v, want the updated selection", tms)
	}
	s1, _ := h.results.Find(ctx, "a1", "s1")
	if len(s1.Marks) != 1 || s1.Marks[0].Score != stored.Score {
		t.Fatalf("s1 marks = %+v, want the updated score %v", s1.Marks, stored.Score)
	}
	s2, _ := h.results.Find(ctx, "a1", "s2")
	if len(s2.Marks) != 1 || s2.Marks[0].Score != sub.Score {
		t.Fatalf("s2 marks = %+v, want the original score %v", s2.Marks, sub.Score)
	}
}

func TestUpdateSubmissionUnknownAccount(t *testing.T) {
	h := newHarness()
	sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)
	_, err := h.svc.UpdateSubmission(context.Background(), sub.ID, "grader", "acc-ghost", answers([]string{"s1"}, "No", 3), false)
	if !util.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDeleteSubmissionTwice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)

	if err := h.svc.DeleteSubmission(ctx, sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored := h.submissions.items[sub.ID]
	if !stored.Deleted || stored.DeletedAt == nil || !stored.DeletedAt.Equal(fixedNow) {
		t.Fatalf("not soft-deleted: %+v", stored)
	}

	err := h.svc.DeleteSubmission(ctx, sub.ID)
	if !util.IsNotFound(err) || !strings.Contains(err.Error(), "(Deleted)") {
		t.Fatalf("expected NotFoundError mentioning (Deleted), got %v", err)
	}
	if err := h.svc.DeleteSubmission(ctx, "missing"); !util.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	subs, _ := h.svc.GetSubmissionsByAssessment(ctx, "a1")
	if len(subs) != 0 {
		t.Fatalf("deleted submission listed: %+v", subs)
	}
}

func TestAdjustSubmissionScore(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)

	if _, err := h.svc.AdjustSubmissionScore(ctx, sub.ID, -1); !util.IsBadRequest(err) {
		t.Fatalf("expected BadRequestError, got %v", err)
	}
	adjusted, err := h.svc.AdjustSubmissionScore(ctx, sub.ID, 0)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adjusted.AdjustedScore == nil || *adjusted.AdjustedScore != 0 {
		t.Fatalf("adjusted score not set: %v", adjusted.AdjustedScore)
	}
	assertClose(t, "score", adjusted.Score, 15)

	r, _ := h.results.Find(ctx, "a1", "s1")
	assertClose(t, "ledger", r.Marks[0].Score, 15)

	_ = h.svc.DeleteSubmission(ctx, sub.ID)
	if _, err := h.svc.AdjustSubmissionScore(ctx, sub.ID, 3); !util.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRegradeSubmissionIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1", "s2"}, "Yes", 3)
	if _, err := h.svc.AdjustSubmissionScore(ctx, sub.ID, 1); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	mc := h.assessments.items["a1"].Questions[1].(*model.MultipleChoiceQuestion)
	mc.Options[0].Points = 4

	first, err := h.svc.RegradeSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	second, err := h.svc.RegradeSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	assertClose(t, "first", first.Score, 9)
	assertClose(t, "second", second.Score, first.Score)
	if second.AdjustedScore != nil {
		t.Fatal("regrade must clear the adjusted score")
	}

	for _, student := range []string{"s1", "s2"} {
		r, _ := h.results.Find(ctx, "a1", student)
		if len(r.Marks) != 1 {
			t.Fatalf("expected a single mark for %s, got %d", student, len(r.Marks))
		}
		assertClose(t, "mark", r.Marks[0].Score, 9)
		assertClose(t, "average", r.AverageScore, 9)
	}
}

func TestRegradeSubmissionDropsOrphanAnswers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)

	a := h.assessments.items["a1"]
	a.Questions = []model.Question{a.Questions[0], a.Questions[2]}

	regraded, err := h.svc.RegradeSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	assertClose(t, "score", regraded.Score, 5)
	if len(regraded.Answers) != 2 {
		t.Fatalf("expected orphan answers dropped, got %d answers", len(regraded.Answers))
	}
	stored := h.submissions.items[sub.ID]
	if len(stored.Answers) != 2 {
		t.Fatalf("orphan answers still persisted: %d", len(stored.Answers))
	}
}

func TestRegradeSubmissionFailures(t *testing.T) {
	t.Run("missing submission", func(t *testing.T) {
		h := newHarness()
		if _, err := h.svc.RegradeSubmission(context.Background(), "missing"); !util.IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("deleted submission is a no-op", func(t *testing.T) {
		h := newHarness()
		ctx := context.Background()
		sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)
		_ = h.svc.DeleteSubmission(ctx, sub.ID)
		h.assessments.items["a1"].Questions[1].(*model.MultipleChoiceQuestion).Options[0].Points = 1

		got, err := h.svc.RegradeSubmission(ctx, sub.ID)
		if err != nil {
			t.Fatalf("regrade: %v", err)
		}
		assertClose(t, "score", got.Score, 15)
	})

	t.Run("team member selection removed", func(t *testing.T) {
		h := newHarness()
		ctx := context.Background()
		sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)
		a := h.assessments.items["a1"]
		a.Questions = a.Questions[1:]

		if _, err := h.svc.RegradeSubmission(ctx, sub.ID); !util.IsBadRequest(err) {
			t.Fatalf("expected BadRequestError, got %v", err)
		}
	})

	t.Run("result vanished", func(t *testing.T) {
		h := newHarness()
		ctx := context.Background()
		sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)
		h.results.dropResult("a1", "s1")

		if _, err := h.svc.RegradeSubmission(ctx, sub.ID); !util.IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("marker vanished", func(t *testing.T) {
		h := newHarness()
		ctx := context.Background()
		sub := mustCreate(t, h, []string{"s1"}, "Yes", 3)
		delete(h.users.users, "grader")

		if _, err := h.svc.RegradeSubmission(ctx, sub.ID); !util.IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}

func TestRegradeAssessmentSubmissions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	mustCreate(t, h, []string{"s1"}, "Yes", 3)
	mustCreate(t, h, []string{"s2"}, "No", 5)
	deleted := mustCreate(t, h, []string{"s3"}, "Yes", 1)
	_ = h.svc.DeleteSubmission(ctx, deleted.ID)

	n, err := h.svc.RegradeAssessmentSubmissions(ctx, "a1")
	if err != nil {
		t.Fatalf("regrade all: %v", err)
	}
	if n != 2 {
		t.Fatalf("regraded %d submissions, want 2", n)
	}
}

func TestRegradeAssessmentSubmissionsIsObserved(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	mustCreate(t, h, []string{"s1"}, "Yes", 3)
	mustCreate(t, h, []string{"s2"}, "No", 5)

	core, logs := observer.New(zap.InfoLevel)
	h.svc.Log = zap.New(core)
	if _, err := h.svc.RegradeAssessmentSubmissions(ctx, "a1"); err != nil {
		t.Fatalf("regrade all: %v", err)
	}
	done := logs.FilterMessage("assessment regraded").All()
	if len(done) != 1 || done[0].ContextMap()["submissions"] != int64(2) {
		t.Fatalf("summary log = %+v", done)
	}

	// 单个提交失败时整个批次以 regrade_all 记录错误
	h.svc.Ledger = NewResultLedger(h.results, failingRecalculator{}, zap.NewNop())
	n, err := h.svc.RegradeAssessmentSubmissions(ctx, "a1")
	if err == nil || n != 0 {
		t.Fatalf("expected failure on the first submission, got n=%d err=%v", n, err)
	}
	var ops []string
	for _, e := range logs.FilterMessage("submission operation failed").All() {
		ops = append(ops, e.ContextMap()["operation"].(string))
	}
	if strings.Join(ops, ",") != "regrade,regrade_all" {
		t.Fatalf("failed operations = %v, want [regrade regrade_all]", ops)
	}
}

func TestRecalculateFailurePropagates(t *testing.T) {
	h := newHarness()
	h.svc.Ledger = NewResultLedger(h.results, failingRecalculator{}, zap.NewNop())

	_, err := h.svc.CreateSubmission(context.Background(), "a1", "grader", answers([]string{"s1"}, "Yes", 3), false)
	if err == nil || !strings.Contains(err.Error(), "aggregate store unavailable") {
		t.Fatalf("expected recompute failure, got %v", err)
	}
}

func TestCanManageAssessment(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tests := []struct {
		account string
		want    bool
	}{
		{account: "acc-grader", want: false},
		{account: "acc-prof", want: true},
		{account: "acc-admin", want: true},
	}
	for _, tc := range tests {
		got, err := h.svc.CanManageAssessment(ctx, tc.account, "a1")
		if err != nil {
			t.Fatalf("%s: %v", tc.account, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.account, got, tc.want)
		}
	}
}
