package copytradeService

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hedgie-app/hedgie_tgbot/config"
	"github.com/hedgie-app/hedgie_tgbot/internal/externalApi"
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/service"
	"github.com/hedgie-app/hedgie_tgbot/internal/sessionStore"
)

type memPersister struct {
	records map[int64]model.Identity
}

func newMemPersister() *memPersister {
	return &memPersister{records: make(map[int64]model.Identity)}
}

func (p *memPersister) LoadIdentity(_ context.Context, chatID int64) (model.Identity, error) {
	identity, ok := p.records[chatID]
	if !ok {
		return model.Identity{}, errors.New("not found")
	}
	return identity, nil
}

func (p *memPersister) SaveIdentity(_ context.Context, chatID int64, identity model.Identity) error {
	p.records[chatID] = identity
	return nil
}

func (p *memPersister) DeleteIdentity(_ context.Context, chatID int64) error {
	delete(p.records, chatID)
	return nil
}

type fakeApi struct {
	identity model.Identity
	loginErr error

	investOutcome model.InvestmentOutcome
	investErr     error
	investCalls   int
	// when set, SubmitInvestment signals investStarted and parks until
	// investRelease is closed, keeping the submission in flight
	investStarted chan struct{}
	investRelease chan struct{}

	portfolio      model.PortfolioSnapshot
	portfolioErr   error
	portfolioCalls int
	// called just before the portfolio result is returned, simulates
	// concurrent store mutations while the request is in flight
	beforePortfolioReturn func()

	balanceUpdate model.BalanceUpdate
	balanceErr    error
}

func (f *fakeApi) Login(_ context.Context, _ int64) (model.Identity, error) {
	return f.identity, f.loginErr
}

func (f *fakeApi) Trackers(_ context.Context) ([]model.Tracker, error) {
	return nil, nil
}

func (f *fakeApi) Tracker(_ context.Context, _ int64) (model.Tracker, error) {
	return model.Tracker{}, nil
}

func (f *fakeApi) Holdings(_ context.Context, _ int64) ([]model.Holding, error) {
	return nil, nil
}

func (f *fakeApi) Portfolio(_ context.Context, _ int64) (model.PortfolioSnapshot, error) {
	f.portfolioCalls++
	if f.beforePortfolioReturn != nil {
		f.beforePortfolioReturn()
	}
	return f.portfolio, f.portfolioErr
}

func (f *fakeApi) SubmitInvestment(_ context.Context, _, _, _ int64) (model.InvestmentOutcome, error) {
	f.investCalls++
	if f.investStarted != nil {
		close(f.investStarted)
		<-f.investRelease
	}
	return f.investOutcome, f.investErr
}

func (f *fakeApi) Deposit(_ context.Context, _, _ int64) (model.BalanceUpdate, error) {
	return f.balanceUpdate, f.balanceErr
}

func (f *fakeApi) Withdraw(_ context.Context, _, _ int64) (model.BalanceUpdate, error) {
	return f.balanceUpdate, f.balanceErr
}

func (f *fakeApi) Balance(_ context.Context, _ int64) (model.BalanceUpdate, error) {
	return f.balanceUpdate, f.balanceErr
}

type fakeReportGenerator struct {
	fileBytes []byte
}

func (g *fakeReportGenerator) Generate(_ context.Context, _ model.PortfolioSnapshot, _ string) ([]byte, string, error) {
	return g.fileBytes, ".xlsx", nil
}

type fakeCloudStorage struct {
	uploads int
	link    string
}

func (s *fakeCloudStorage) UploadFile(_ context.Context, _ io.Reader, _ string) (string, error) {
	s.uploads++
	return s.link, nil
}

func int64Ptr(v int64) *int64 { return &v }

func newTestService(api *fakeApi) (*CopytradeService, *fakeCloudStorage) {
	cfg := &config.Config{}
	cfg.Telegram.FileLimitInBytes = 1024

	storage := &fakeCloudStorage{link: "https://drive.example/report"}
	srv := New(cfg, api, sessionStore.NewManager(newMemPersister()), &fakeReportGenerator{fileBytes: []byte("x")}, storage)
	return srv, storage
}

func signIn(t *testing.T, srv *CopytradeService, chatID int64, balanceCLP int64) {
	t.Helper()
	srv.api.(*fakeApi).identity = model.Identity{ID: 42, Name: "Ana", BalanceCLP: balanceCLP}
	if _, err := srv.SignIn(context.Background(), chatID, 42); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func cachedBalance(t *testing.T, srv *CopytradeService, chatID int64) int64 {
	t.Helper()
	identity, ok := srv.Identity(context.Background(), chatID)
	if !ok {
		t.Fatal("expected signed-in chat")
	}
	return identity.BalanceCLP
}

func TestSubmitInvestmentRequiresAuth(t *testing.T) {
	srv, _ := newTestService(&fakeApi{})

	_, err := srv.SubmitInvestment(context.Background(), 1, 7, "50000")
	if !errors.Is(err, service.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestSubmitInvestmentLocalValidationNeverReachesNetwork(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{name: "not a number", amount: "abc", wantErr: service.ErrInvalidAmount},
		{name: "zero", amount: "0", wantErr: service.ErrInvalidAmount},
		{name: "negative", amount: "-100", wantErr: service.ErrInvalidAmount},
		{name: "over cached balance", amount: "1000001", wantErr: service.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeApi{}
			srv, _ := newTestService(api)
			signIn(t, srv, 1, 1000000)

			_, err := srv.SubmitInvestment(context.Background(), 1, 7, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if api.investCalls != 0 {
				t.Error("local rejection must not call the backend")
			}
			if got := cachedBalance(t, srv, 1); got != 1000000 {
				t.Errorf("balance = %d, want untouched 1000000", got)
			}
		})
	}
}

func TestSubmitInvestmentExactBalanceProceeds(t *testing.T) {
	api := &fakeApi{
		investOutcome: model.InvestmentOutcome{Accepted: true, RemainingBalanceCLP: int64Ptr(0), Message: "ok"},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	outcome, err := srv.SubmitInvestment(context.Background(), 1, 7, "1000000")
	if err != nil {
		t.Fatalf("SubmitInvestment: %v", err)
	}
	if !outcome.Accepted {
		t.Fatal("outcome should be accepted")
	}
	if api.investCalls != 1 {
		t.Errorf("investCalls = %d, want 1", api.investCalls)
	}
	if got := cachedBalance(t, srv, 1); got != 0 {
		t.Errorf("balance = %d, want server's remaining 0", got)
	}
}

func TestSubmitInvestmentRejectionLeavesBalance(t *testing.T) {
	api := &fakeApi{
		investErr: &externalApi.APIError{Kind: externalApi.ErrKindRejected, StatusCode: 400, Detail: "tracker closed"},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 50000)

	_, err := srv.SubmitInvestment(context.Background(), 1, 7, "20000")
	var apiErr *externalApi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Detail != "tracker closed" {
		t.Errorf("detail = %q", apiErr.Detail)
	}
	if got := cachedBalance(t, srv, 1); got != 50000 {
		t.Errorf("balance = %d, want untouched 50000", got)
	}
}

func TestSubmitInvestmentSecondAttemptWhileInFlightRejected(t *testing.T) {
	api := &fakeApi{
		investOutcome: model.InvestmentOutcome{Accepted: true, RemainingBalanceCLP: int64Ptr(500000), Message: "ok"},
		investStarted: make(chan struct{}),
		investRelease: make(chan struct{}),
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	firstDone := make(chan error, 1)
	go func() {
		_, err := srv.SubmitInvestment(context.Background(), 1, 7, "500000")
		firstDone <- err
	}()

	<-api.investStarted

	_, err := srv.SubmitInvestment(context.Background(), 1, 7, "100000")
	if !errors.Is(err, service.ErrSubmissionInFlight) {
		t.Fatalf("err = %v, want ErrSubmissionInFlight", err)
	}

	close(api.investRelease)
	if err := <-firstDone; err != nil {
		t.Fatalf("first submission: %v", err)
	}

	if api.investCalls != 1 {
		t.Errorf("investCalls = %d, want 1, rejected attempt must not reach the backend", api.investCalls)
	}
	if got := cachedBalance(t, srv, 1); got != 500000 {
		t.Errorf("balance = %d, want the first submission's remaining 500000", got)
	}
}

func TestSubmitInvestmentUnreportedRemainingBalanceLeavesCache(t *testing.T) {
	api := &fakeApi{
		investOutcome: model.InvestmentOutcome{Accepted: true, Message: "ok"},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 100000)

	if _, err := srv.SubmitInvestment(context.Background(), 1, 7, "50000"); err != nil {
		t.Fatalf("SubmitInvestment: %v", err)
	}

	// no remaining_balance in the response: never decrement locally
	if got := cachedBalance(t, srv, 1); got != 100000 {
		t.Errorf("balance = %d, want untouched 100000", got)
	}
}

func TestPortfolioReconcilesCachedBalance(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{OwnerID: 42, AvailableBalanceCLP: 950000},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	snapshot, err := srv.Portfolio(context.Background(), 1)
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if snapshot.AvailableBalanceCLP != 950000 {
		t.Errorf("snapshot balance = %d", snapshot.AvailableBalanceCLP)
	}
	if got := cachedBalance(t, srv, 1); got != 950000 {
		t.Errorf("cached balance = %d, want reconciled 950000", got)
	}
}

func TestPortfolioResultAfterSignOutIsDiscarded(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{OwnerID: 42, AvailableBalanceCLP: 950000},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	api.beforePortfolioReturn = func() {
		_ = srv.SignOut(context.Background(), 1)
	}

	if _, err := srv.Portfolio(context.Background(), 1); err != nil {
		t.Fatalf("Portfolio: %v", err)
	}

	if _, ok := srv.Identity(context.Background(), 1); ok {
		t.Error("chat should remain signed out, late result must not revive the identity")
	}
}

func TestPortfolioResultAfterUserSwitchIsDiscarded(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{OwnerID: 42, AvailableBalanceCLP: 950000},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	api.beforePortfolioReturn = func() {
		api.beforePortfolioReturn = nil
		signIn(t, srv, 1, 300000)
	}

	if _, err := srv.Portfolio(context.Background(), 1); err != nil {
		t.Fatalf("Portfolio: %v", err)
	}

	if got := cachedBalance(t, srv, 1); got != 300000 {
		t.Errorf("balance = %d, want new owner's 300000", got)
	}
}

func TestDepositReconcilesBalance(t *testing.T) {
	api := &fakeApi{
		balanceUpdate: model.BalanceUpdate{UserID: 42, Name: "Ana", BalanceCLP: 1100000, Message: "Depósito exitoso"},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	update, err := srv.Deposit(context.Background(), 1, "100000")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if update.BalanceCLP != 1100000 {
		t.Errorf("update balance = %d", update.BalanceCLP)
	}
	if got := cachedBalance(t, srv, 1); got != 1100000 {
		t.Errorf("cached balance = %d, want 1100000", got)
	}
}

func TestDepositInvalidAmount(t *testing.T) {
	srv, _ := newTestService(&fakeApi{})
	signIn(t, srv, 1, 1000000)

	if _, err := srv.Deposit(context.Background(), 1, "-5"); !errors.Is(err, service.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestPortfolioReportEmptyPortfolio(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{OwnerID: 42, AvailableBalanceCLP: 1000000},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)

	if _, err := srv.PortfolioReport(context.Background(), 1); !errors.Is(err, service.ErrEmptyPortfolio) {
		t.Fatalf("err = %v, want ErrEmptyPortfolio", err)
	}
}

func TestPortfolioReportSmallFileSentDirectly(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{
			OwnerID:             42,
			AvailableBalanceCLP: 1000000,
			Positions:           []model.ActivePosition{{TrackerID: 7, TrackerName: "Hawk", InvestedCLP: 50000}},
		},
	}
	srv, storage := newTestService(api)
	signIn(t, srv, 1, 1000000)

	report, err := srv.PortfolioReport(context.Background(), 1)
	if err != nil {
		t.Fatalf("PortfolioReport: %v", err)
	}
	if len(report.FileBytes) == 0 {
		t.Error("expected inline file bytes")
	}
	if report.DownloadLink != "" {
		t.Error("small report must not go to cloud storage")
	}
	if storage.uploads != 0 {
		t.Errorf("uploads = %d, want 0", storage.uploads)
	}
}

func TestPortfolioReportLargeFileGoesToCloudStorage(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{
			OwnerID:             42,
			AvailableBalanceCLP: 1000000,
			Positions:           []model.ActivePosition{{TrackerID: 7, TrackerName: "Hawk", InvestedCLP: 50000}},
		},
	}

	cfg := &config.Config{}
	cfg.Telegram.FileLimitInBytes = 4

	storage := &fakeCloudStorage{link: "https://drive.example/report"}
	generator := &fakeReportGenerator{fileBytes: []byte("bigger than the limit")}
	srv := New(cfg, api, sessionStore.NewManager(newMemPersister()), generator, storage)
	signIn(t, srv, 1, 1000000)

	report, err := srv.PortfolioReport(context.Background(), 1)
	if err != nil {
		t.Fatalf("PortfolioReport: %v", err)
	}
	if report.DownloadLink != storage.link {
		t.Errorf("link = %q, want %q", report.DownloadLink, storage.link)
	}
	if len(report.FileBytes) != 0 {
		t.Error("oversized report must not carry inline bytes")
	}
	if storage.uploads != 1 {
		t.Errorf("uploads = %d, want 1", storage.uploads)
	}
}

func TestRefreshBalancesReconcilesEverySignedInChat(t *testing.T) {
	api := &fakeApi{
		portfolio: model.PortfolioSnapshot{OwnerID: 42, AvailableBalanceCLP: 700000},
	}
	srv, _ := newTestService(api)
	signIn(t, srv, 1, 1000000)
	signIn(t, srv, 2, 1000000)

	if err := srv.RefreshBalances(context.Background()); err != nil {
		t.Fatalf("RefreshBalances: %v", err)
	}

	if api.portfolioCalls != 2 {
		t.Errorf("portfolioCalls = %d, want 2", api.portfolioCalls)
	}
	for _, chatID := range []int64{1, 2} {
		if got := cachedBalance(t, srv, chatID); got != 700000 {
			t.Errorf("chat %d balance = %d, want 700000", chatID, got)
		}
	}
}
