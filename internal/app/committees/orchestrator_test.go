package committees_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/recruithub/internal/app/committees"
	applicationstore "github.com/dalemusser/recruithub/internal/app/store/applications"
	templatestore "github.com/dalemusser/recruithub/internal/app/store/committeetemplates"
	"github.com/dalemusser/recruithub/internal/app/store/notifyprefs"
	"github.com/dalemusser/recruithub/internal/app/system/notify"
	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/dalemusser/recruithub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const baseURL = "https://hire.example.com"

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []notify.FeedbackRequest
	notices  []notify.CompletionNotice
	failFor  map[string]bool
}

func (f *fakeDispatcher) SendFeedbackRequest(_ context.Context, req notify.FeedbackRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[req.Reviewer.Email] {
		return fmt.Errorf("%w: smtp unavailable", committee.ErrNotificationFailed)
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeDispatcher) SendCompletionNotice(_ context.Context, n notify.CompletionNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return nil
}

// tokenFor returns the plain token from the latest link sent to email.
func (f *fakeDispatcher) tokenFor(t *testing.T, email string) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Reviewer.Email == email {
			return strings.TrimPrefix(f.requests[i].Link, baseURL+"/feedback/")
		}
	}
	t.Fatalf("no feedback request sent to %s", email)
	return ""
}

func (f *fakeDispatcher) noticeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

type env struct {
	db       *mongo.Database
	fixtures *testutil.Fixtures
	orch     *committees.Orchestrator
	disp     *fakeDispatcher
	hr       models.User
	app      models.Application
	users    []models.User
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e := &env{
		db:       db,
		fixtures: fixtures,
		disp:     &fakeDispatcher{failFor: map[string]bool{}},
		hr:       fixtures.CreateHRManager(ctx, "Hana HR", "hr@example.com"),
		app:      fixtures.CreateApplication(ctx, "Jane Doe", "Backend Engineer"),
	}
	e.users = []models.User{
		fixtures.CreateUser(ctx, "Ann Interviewer", "ann@example.com", models.RoleInterviewer),
		fixtures.CreateUser(ctx, "Ben Lead", "ben@example.com", models.RoleTechnicalLead),
		fixtures.CreateUser(ctx, "Cal Manager", "cal@example.com", models.RoleHiringManager),
		fixtures.CreateUser(ctx, "Dee Head", "dee@example.com", models.RoleDepartmentHead),
	}

	svc := committees.NewService(committees.Deps{DB: db, Log: zap.NewNop()})
	e.orch = committees.NewOrchestrator(svc, e.disp, nil, committees.Config{BaseURL: baseURL})
	return e
}

func (e *env) specs() []committees.MemberSpec {
	out := make([]committees.MemberSpec, 0, len(e.users))
	for i, u := range e.users {
		out = append(out, committees.MemberSpec{UserID: u.ID, IsPrimary: i == 2})
	}
	return out
}

func (e *env) assign(t *testing.T, ctx context.Context, settings committee.Settings) *models.ApplicationCommittee {
	t.Helper()
	c, err := e.orch.AssignCustom(ctx, e.app.ID, e.specs(), settings, nil)
	if err != nil {
		t.Fatalf("AssignCustom failed: %v", err)
	}
	return c
}

func intp(v int) *int { return &v }

func scorep(v float64) *float64 { return &v }

func TestAssignTemplate(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tpl := e.fixtures.CreateTemplate(ctx, "Backend Panel", models.TemplateSettings{
		MinFeedbackRequired:  3,
		FeedbackDeadlineDays: 5,
		VotingMechanism:      models.VotingMajority,
	}, e.users[0], e.users[1])

	c, err := e.orch.AssignTemplate(ctx, e.app.ID, tpl.ID, &e.hr.ID)
	if err != nil {
		t.Fatalf("AssignTemplate failed: %v", err)
	}

	if len(c.Members) != 3 {
		t.Fatalf("expected 2 template members plus HR manager, got %d", len(c.Members))
	}
	if !committee.HasHRManager(c) {
		t.Error("expected HR manager to be appended")
	}
	if c.VotingResults.TotalMembers != 3 {
		t.Errorf("TotalMembers: got %d, want 3", c.VotingResults.TotalMembers)
	}
	if c.Settings.MinFeedbackRequired != 3 || c.Settings.VotingMechanism != models.VotingMajority {
		t.Errorf("settings not copied from template: %+v", c.Settings)
	}
	if c.Settings.FeedbackDeadline == nil {
		t.Fatal("expected a feedback deadline")
	}
	if d := time.Until(*c.Settings.FeedbackDeadline); d < 4*24*time.Hour || d > 5*24*time.Hour {
		t.Errorf("deadline %v is not about 5 days out", d)
	}
	for _, m := range c.Members {
		if m.Status != models.MemberPending {
			t.Errorf("member %s: status %q, want pending", m.Email, m.Status)
		}
	}

	if _, err := e.orch.AssignTemplate(ctx, e.app.ID, tpl.ID, nil); !errors.Is(err, committee.ErrAlreadyAssigned) {
		t.Errorf("expected ErrAlreadyAssigned, got %v", err)
	}
}

func TestAssignTemplate_Errors(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tpl := e.fixtures.CreateTemplate(ctx, "Panel", models.TemplateSettings{MinFeedbackRequired: 1}, e.users[0])

	if _, err := e.orch.AssignTemplate(ctx, primitive.NewObjectID(), tpl.ID, nil); !errors.Is(err, committee.ErrNotFound) {
		t.Errorf("missing application: expected ErrNotFound, got %v", err)
	}
	if _, err := e.orch.AssignTemplate(ctx, e.app.ID, primitive.NewObjectID(), nil); !errors.Is(err, committee.ErrNotFound) {
		t.Errorf("missing template: expected ErrNotFound, got %v", err)
	}

	if err := templatestore.New(e.db).SoftDelete(ctx, tpl.ID); err != nil {
		t.Fatalf("deactivate template: %v", err)
	}
	if _, err := e.orch.AssignTemplate(ctx, e.app.ID, tpl.ID, nil); !errors.Is(err, committee.ErrInvalidInput) {
		t.Errorf("inactive template: expected ErrInvalidInput, got %v", err)
	}
}

func TestAssignCustom_DefaultsAndValidation(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unknown := []committees.MemberSpec{{UserID: primitive.NewObjectID()}}
	if _, err := e.orch.AssignCustom(ctx, e.app.ID, unknown, committee.Settings{}, nil); !errors.Is(err, committee.ErrInvalidInput) {
		t.Errorf("unknown user: expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.orch.AssignCustom(ctx, e.app.ID, nil, committee.Settings{}, nil); !errors.Is(err, committee.ErrInvalidInput) {
		t.Errorf("empty roster: expected ErrInvalidInput, got %v", err)
	}

	c := e.assign(t, ctx, committee.Settings{})
	if c.Settings.MinFeedbackRequired != committee.DefaultMinFeedbackRequired {
		t.Errorf("MinFeedbackRequired: got %d", c.Settings.MinFeedbackRequired)
	}
	if c.Settings.RequireAllFeedback {
		t.Error("RequireAllFeedback: expected false")
	}
	if c.Settings.VotingMechanism != models.VotingAverage {
		t.Errorf("VotingMechanism: got %q", c.Settings.VotingMechanism)
	}
	if c.Members[0].Role != models.RoleInterviewer {
		t.Errorf("expected member role to default to the user's role, got %q", c.Members[0].Role)
	}
}

func TestCancel_AllowsReassignment(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	plain := e.disp.tokenFor(t, "ann@example.com")

	cancelled, err := e.orch.Cancel(ctx, c.ID, e.hr.ID, "  role closed ")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != models.CommitteeCancelled || cancelled.CancellationReason != "role closed" {
		t.Errorf("unexpected cancelled committee: %q %q", cancelled.Status, cancelled.CancellationReason)
	}
	if _, err := e.orch.Cancel(ctx, c.ID, e.hr.ID, ""); !errors.Is(err, committee.ErrInvalidTransition) {
		t.Errorf("second Cancel: expected ErrInvalidTransition, got %v", err)
	}

	// Outstanding links are revoked and report the closed committee.
	if _, err := e.orch.VerifyToken(ctx, plain); !errors.Is(err, committee.ErrInvalidTransition) {
		t.Errorf("VerifyToken after cancel: expected ErrInvalidTransition, got %v", err)
	}
	_, err = e.orch.SubmitFeedback(ctx, plain, committees.FeedbackInput{Recommendation: "recommend"})
	if !errors.Is(err, committee.ErrInvalidTransition) {
		t.Errorf("SubmitFeedback after cancel: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); !errors.Is(err, committee.ErrInvalidTransition) {
		t.Errorf("DispatchRequests after cancel: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := e.orch.AssignCustom(ctx, e.app.ID, e.specs(), committee.Settings{}, nil); err != nil {
		t.Errorf("reassignment after cancel failed: %v", err)
	}
}

func TestDispatchRequests(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{})

	if err := notifyprefs.New(e.db).Disable(ctx, e.users[1].ID, models.NotifyFeedbackRequest); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	e.disp.failFor["cal@example.com"] = true

	res, err := e.orch.DispatchRequests(ctx, c.ID, &e.hr.ID)
	if err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}

	// ann, dee and the HR manager are sent; ben opted out; cal failed.
	if res.Sent != 3 || res.Failed != 1 {
		t.Errorf("Sent/Failed: got %d/%d, want 3/1", res.Sent, res.Failed)
	}
	reasons := map[string]string{}
	for _, r := range res.Results {
		reasons[r.Email] = r.Reason
	}
	want := map[string]string{
		"ann@example.com": committees.ReasonSent,
		"ben@example.com": committees.ReasonPreferenceDisabled,
		"cal@example.com": committees.ReasonSendError,
		"dee@example.com": committees.ReasonSent,
		"hr@example.com":  committees.ReasonSent,
	}
	for email, reason := range want {
		if reasons[email] != reason {
			t.Errorf("%s: reason %q, want %q", email, reasons[email], reason)
		}
	}

	got, err := e.orch.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	for _, m := range got.Members {
		sent := want[m.Email] == committees.ReasonSent
		if sent && (m.TokenID == nil || m.NotifiedAt == nil) {
			t.Errorf("%s: expected token and notified_at", m.Email)
		}
		if !sent && m.TokenID != nil {
			t.Errorf("%s: expected no token", m.Email)
		}
		if m.Status != models.MemberPending {
			t.Errorf("%s: expected pending, got %q", m.Email, m.Status)
		}
	}

	// The failed send left no live link behind.
	delete(e.disp.failFor, "cal@example.com")
	res, err = e.orch.DispatchRequests(ctx, c.ID, nil)
	if err != nil {
		t.Fatalf("second DispatchRequests failed: %v", err)
	}
	reasons = map[string]string{}
	for _, r := range res.Results {
		reasons[r.Email] = r.Reason
	}
	if reasons["cal@example.com"] != committees.ReasonSent {
		t.Errorf("cal: expected sent on retry, got %q", reasons["cal@example.com"])
	}
	if reasons["ann@example.com"] != committees.ReasonAlreadyHasToken {
		t.Errorf("ann: expected already_has_token, got %q", reasons["ann@example.com"])
	}
	if res.Sent != 1 || res.Failed != 0 {
		t.Errorf("second run Sent/Failed: got %d/%d, want 1/0", res.Sent, res.Failed)
	}
}

func TestSubmitFeedback_MajorityScenario(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{
		MinFeedbackRequired: intp(2),
		VotingMechanism:     models.VotingMajority,
	})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}

	annToken := e.disp.tokenFor(t, "ann@example.com")
	tc, err := e.orch.VerifyToken(ctx, annToken)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if tc.Member == nil || tc.Member.Email != "ann@example.com" || tc.Application.CandidateName != "Jane Doe" {
		t.Errorf("unexpected token context: %+v", tc)
	}

	res, err := e.orch.SubmitFeedback(ctx, annToken, committees.FeedbackInput{
		OverallScore:   scorep(8),
		Recommendation: "Recommend",
		Notes:          "<b>Strong</b> systems design",
		Strengths:      []string{"<i>design</i>", "  "},
	})
	if err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}
	if res.Completed {
		t.Fatal("committee completed after one submission")
	}
	if res.Feedback.Notes != "Strong systems design" {
		t.Errorf("notes not sanitized: %q", res.Feedback.Notes)
	}
	if len(res.Feedback.Strengths) != 1 || res.Feedback.Strengths[0] != "design" {
		t.Errorf("strengths not sanitized: %v", res.Feedback.Strengths)
	}
	if res.Feedback.Recommendation != models.FeedbackRecommend {
		t.Errorf("recommendation: got %q", res.Feedback.Recommendation)
	}

	if _, err := e.orch.SubmitFeedback(ctx, annToken, committees.FeedbackInput{Recommendation: "recommend"}); !errors.Is(err, committee.ErrTokenAlreadyRedeemed) {
		t.Errorf("reused token: expected ErrTokenAlreadyRedeemed, got %v", err)
	}

	res, err = e.orch.SubmitFeedback(ctx, e.disp.tokenFor(t, "ben@example.com"), committees.FeedbackInput{
		OverallScore:   scorep(7),
		Recommendation: "recommend",
	})
	if err != nil {
		t.Fatalf("second SubmitFeedback failed: %v", err)
	}
	if !res.Completed {
		t.Fatal("expected second submission to complete the committee")
	}

	vr := res.Committee.VotingResults
	if vr.SubmittedCount != 2 || vr.AverageScore != 7.5 || vr.Recommendation != models.RecommendationHire {
		t.Errorf("voting results: %+v", vr)
	}
	if res.Committee.Status != models.CommitteeCompleted {
		t.Errorf("status: got %q", res.Committee.Status)
	}
	if e.disp.noticeCount() != 1 {
		t.Fatalf("expected 1 completion notice, got %d", e.disp.noticeCount())
	}
	recipients := map[string]bool{}
	for _, r := range e.disp.notices[0].Recipients {
		recipients[r.Email] = true
	}
	if !recipients["hr@example.com"] || !recipients["cal@example.com"] {
		t.Errorf("expected HR and hiring manager recipients, got %v", recipients)
	}

	// Late reviewers can no longer submit.
	if _, err := e.orch.SubmitFeedback(ctx, e.disp.tokenFor(t, "dee@example.com"), committees.FeedbackInput{Recommendation: "recommend"}); err == nil {
		t.Error("expected submission to a completed committee to fail")
	}

	records, err := applicationstore.New(e.db).ListFeedback(ctx, e.app.ID)
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 feedback records, got %d", len(records))
	}
}

func TestSubmitFeedback_InvalidInputKeepsToken(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	plain := e.disp.tokenFor(t, "ann@example.com")

	tests := []struct {
		name string
		in   committees.FeedbackInput
	}{
		{"score too high", committees.FeedbackInput{OverallScore: scorep(11)}},
		{"negative score", committees.FeedbackInput{OverallScore: scorep(-1)}},
		{"unknown recommendation", committees.FeedbackInput{Recommendation: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.orch.SubmitFeedback(ctx, plain, tt.in); !errors.Is(err, committee.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if _, err := e.orch.VerifyToken(ctx, plain); err != nil {
		t.Errorf("token should still be usable: %v", err)
	}
}

func TestSubmitFeedback_NotAMemberReleasesToken(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{})
	cid := c.ID

	// A link for someone who is not in the user directory.
	plain, _, err := e.orch.Tokens().Issue(ctx, feedbackParams(e.app.ID, &cid, "stranger@example.com"))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := e.orch.SubmitFeedback(ctx, plain, committees.FeedbackInput{Recommendation: "recommend"}); !errors.Is(err, committee.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}

	tok, err := e.orch.Tokens().Verify(ctx, plain)
	if err != nil {
		t.Fatalf("token should be released after a failed submission: %v", err)
	}
	if tok.Status != models.TokenActive {
		t.Errorf("token status: got %q, want active", tok.Status)
	}
	records, _ := applicationstore.New(e.db).ListFeedback(ctx, e.app.ID)
	if len(records) != 0 {
		t.Errorf("expected no feedback records, got %d", len(records))
	}
}

func TestSubmitFeedback_ConcurrentSameToken(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{MinFeedbackRequired: intp(5)})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	plain := e.disp.tokenFor(t, "ann@example.com")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.orch.SubmitFeedback(ctx, plain, committees.FeedbackInput{OverallScore: scorep(6), Recommendation: "recommend"})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, committee.ErrTokenAlreadyRedeemed), errors.Is(err, committee.ErrAlreadySubmitted):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful submission, got %d", successes)
	}

	got, _ := e.orch.Get(ctx, c.ID)
	if got.VotingResults.SubmittedCount != 1 {
		t.Errorf("SubmittedCount: got %d, want 1", got.VotingResults.SubmittedCount)
	}
	records, _ := applicationstore.New(e.db).ListFeedback(ctx, e.app.ID)
	if len(records) != 1 {
		t.Errorf("expected 1 feedback record, got %d", len(records))
	}
}

func TestSubmitFeedback_ConcurrentMembersCompleteOnce(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{MinFeedbackRequired: intp(3), VotingMechanism: models.VotingMajority})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}

	emails := []string{"ann@example.com", "ben@example.com", "cal@example.com", "dee@example.com", "hr@example.com"}
	tokens := make([]string, len(emails))
	for i, email := range emails {
		tokens[i] = e.disp.tokenFor(t, email)
	}

	var wg sync.WaitGroup
	results := make([]*committees.SubmitResult, len(tokens))
	errs := make([]error, len(tokens))
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.orch.SubmitFeedback(ctx, tokens[i], committees.FeedbackInput{OverallScore: scorep(7), Recommendation: "recommend"})
		}(i)
	}
	wg.Wait()

	completions := 0
	for i, err := range errs {
		switch {
		case err == nil:
			if results[i].Completed {
				completions++
			}
		case errors.Is(err, committee.ErrInvalidTransition), errors.Is(err, committee.ErrNotFound):
			// Arrived after completion.
		default:
			t.Errorf("%s: unexpected error: %v", emails[i], err)
		}
	}
	if completions != 1 {
		t.Errorf("expected exactly one submission to complete the committee, got %d", completions)
	}
	if e.disp.noticeCount() != 1 {
		t.Errorf("expected exactly 1 completion notice, got %d", e.disp.noticeCount())
	}

	got, err := e.orch.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.CommitteeCompleted {
		t.Errorf("status: got %q", got.Status)
	}
	if got.VotingResults.SubmittedCount < 3 {
		t.Errorf("SubmittedCount: got %d, want at least 3", got.VotingResults.SubmittedCount)
	}
	records, _ := applicationstore.New(e.db).ListFeedback(ctx, e.app.ID)
	if len(records) != got.VotingResults.SubmittedCount {
		t.Errorf("feedback records (%d) disagree with SubmittedCount (%d)", len(records), got.VotingResults.SubmittedCount)
	}
}

func TestSendReminders(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Deadline tomorrow: inside the reminder window.
	c := e.assign(t, ctx, committee.Settings{FeedbackDeadlineDays: intp(1)})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	first := e.disp.tokenFor(t, "ann@example.com")
	if _, err := e.orch.SubmitFeedback(ctx, e.disp.tokenFor(t, "ben@example.com"), committees.FeedbackInput{Recommendation: "recommend"}); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}

	res, err := e.orch.SendReminders(ctx, c.ID)
	if err != nil {
		t.Fatalf("SendReminders failed: %v", err)
	}
	// Everyone except ben, who already submitted.
	if res.Sent != 4 {
		t.Errorf("Sent: got %d, want 4", res.Sent)
	}

	second := e.disp.tokenFor(t, "ann@example.com")
	if second == first {
		t.Fatal("expected a fresh link in the reminder")
	}
	if _, err := e.orch.VerifyToken(ctx, first); !errors.Is(err, committee.ErrNotFound) {
		t.Errorf("old link: expected ErrNotFound, got %v", err)
	}
	if _, err := e.orch.VerifyToken(ctx, second); err != nil {
		t.Errorf("new link should verify: %v", err)
	}

	got, _ := e.orch.Get(ctx, c.ID)
	for _, m := range got.Members {
		if m.Email == "ben@example.com" {
			if m.ReminderCount != 0 {
				t.Errorf("submitted member reminded")
			}
			continue
		}
		if m.ReminderCount != 1 || m.ReminderSentAt == nil {
			t.Errorf("%s: reminder_count=%d reminder_sent_at=%v", m.Email, m.ReminderCount, m.ReminderSentAt)
		}
	}

	e.disp.mu.Lock()
	last := e.disp.requests[len(e.disp.requests)-1]
	e.disp.mu.Unlock()
	if !last.Reminder {
		t.Error("expected reminder flag on the request")
	}
}

func TestSendReminders_OutsideWindow(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Deadline in seven days: the window opens two days before it.
	c := e.assign(t, ctx, committee.Settings{FeedbackDeadlineDays: intp(7)})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	first := e.disp.tokenFor(t, "ann@example.com")

	res, err := e.orch.SendReminders(ctx, c.ID)
	if err != nil {
		t.Fatalf("SendReminders failed: %v", err)
	}
	if res.Sent != 0 || res.Failed != 0 || len(res.Results) != 0 {
		t.Errorf("expected no reminders outside the window, got %+v", res)
	}
	if got := e.disp.tokenFor(t, "ann@example.com"); got != first {
		t.Error("link rotated outside the reminder window")
	}
	if _, err := e.orch.VerifyToken(ctx, first); err != nil {
		t.Errorf("original link should still verify: %v", err)
	}

	// No deadline at all.
	other := e.fixtures.CreateApplication(ctx, "John Roe", "Data Engineer")
	open, err := e.orch.AssignCustom(ctx, other.ID, e.specs(), committee.Settings{FeedbackDeadlineDays: intp(0)}, nil)
	if err != nil {
		t.Fatalf("AssignCustom failed: %v", err)
	}
	res, err = e.orch.SendReminders(ctx, open.ID)
	if err != nil {
		t.Fatalf("SendReminders without deadline failed: %v", err)
	}
	if res.Sent != 0 {
		t.Errorf("committee without deadline: Sent=%d, want 0", res.Sent)
	}
}

func TestSendReminders_KeepsLinkWhenNotReminded(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{FeedbackDeadlineDays: intp(1)})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	annLink := e.disp.tokenFor(t, "ann@example.com")
	benLink := e.disp.tokenFor(t, "ben@example.com")

	// ann opted out of reminders; mail to ben fails.
	prefs := notifyprefs.New(e.db)
	if err := prefs.Disable(ctx, e.users[0].ID, models.NotifyFeedbackReminder); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	e.disp.mu.Lock()
	e.disp.failFor["ben@example.com"] = true
	e.disp.mu.Unlock()

	res, err := e.orch.SendReminders(ctx, c.ID)
	if err != nil {
		t.Fatalf("SendReminders failed: %v", err)
	}
	reasons := map[string]string{}
	for _, r := range res.Results {
		reasons[r.Email] = r.Reason
	}
	if reasons["ann@example.com"] != committees.ReasonPreferenceDisabled {
		t.Errorf("ann: reason %q, want %q", reasons["ann@example.com"], committees.ReasonPreferenceDisabled)
	}
	if reasons["ben@example.com"] != committees.ReasonSendError {
		t.Errorf("ben: reason %q, want %q", reasons["ben@example.com"], committees.ReasonSendError)
	}

	for _, link := range []string{annLink, benLink} {
		if _, err := e.orch.VerifyToken(ctx, link); err != nil {
			t.Errorf("original link should still verify: %v", err)
		}
	}
	got, _ := e.orch.Get(ctx, c.ID)
	for _, m := range got.Members {
		if (m.Email == "ann@example.com" || m.Email == "ben@example.com") && (m.TokenID == nil || m.ReminderCount != 0) {
			t.Errorf("%s: token_id=%v reminder_count=%d", m.Email, m.TokenID, m.ReminderCount)
		}
	}

	// The kept link still records feedback.
	if _, err := e.orch.SubmitFeedback(ctx, annLink, committees.FeedbackInput{Recommendation: "recommend"}); err != nil {
		t.Errorf("SubmitFeedback with kept link failed: %v", err)
	}
}

func TestSweepReminders(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Deadline tomorrow: inside the reminder window.
	soon := e.assign(t, ctx, committee.Settings{FeedbackDeadlineDays: intp(1)})

	// Deadline next week on another application: outside the window.
	other := e.fixtures.CreateApplication(ctx, "John Roe", "Data Engineer")
	later, err := e.orch.AssignCustom(ctx, other.ID, e.specs(), committee.Settings{FeedbackDeadlineDays: intp(7)}, nil)
	if err != nil {
		t.Fatalf("AssignCustom failed: %v", err)
	}

	res, err := e.orch.SweepReminders(ctx)
	if err != nil {
		t.Fatalf("SweepReminders failed: %v", err)
	}
	if res.Committees != 1 || res.Sent != 5 {
		t.Errorf("first sweep: got %+v, want 1 committee and 5 sent", res)
	}

	got, _ := e.orch.Get(ctx, soon.ID)
	for _, m := range got.Members {
		if m.ReminderCount != 1 {
			t.Errorf("%s: reminder_count=%d, want 1", m.Email, m.ReminderCount)
		}
	}
	untouched, _ := e.orch.Get(ctx, later.ID)
	for _, m := range untouched.Members {
		if m.ReminderCount != 0 {
			t.Errorf("%s on later committee was reminded", m.Email)
		}
	}

	// Members were just reminded.
	res, err = e.orch.SweepReminders(ctx)
	if err != nil {
		t.Fatalf("second SweepReminders failed: %v", err)
	}
	if res.Sent != 0 {
		t.Errorf("second sweep sent %d reminders, want 0", res.Sent)
	}
}

func TestGetProgress(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := e.assign(t, ctx, committee.Settings{})
	if _, err := e.orch.DispatchRequests(ctx, c.ID, nil); err != nil {
		t.Fatalf("DispatchRequests failed: %v", err)
	}
	if _, err := e.orch.SubmitFeedback(ctx, e.disp.tokenFor(t, "dee@example.com"), committees.FeedbackInput{OverallScore: scorep(4), Recommendation: "not recommend"}); err != nil {
		t.Fatalf("SubmitFeedback failed: %v", err)
	}

	p, err := e.orch.GetProgress(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if p.SubmittedCount != 1 || p.TotalMembers != 5 || len(p.PendingMembers) != 4 {
		t.Errorf("progress: submitted=%d total=%d pending=%d", p.SubmittedCount, p.TotalMembers, len(p.PendingMembers))
	}
	if p.IsComplete {
		t.Error("expected incomplete committee")
	}
	if p.VotingResults.Recommendation != models.RecommendationReject {
		t.Errorf("recommendation: got %q, want reject", p.VotingResults.Recommendation)
	}

	if _, err := e.orch.GetProgress(ctx, primitive.NewObjectID()); !errors.Is(err, committee.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
