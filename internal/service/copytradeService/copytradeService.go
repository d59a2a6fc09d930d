// Package copytradeService implements the client-side investment workflow
// against the Hedgie backend: local order validation, submission, and
// reconciliation of the cached balance with the authoritative server value.
package copytradeService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hedgie-app/hedgie_tgbot/config"
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/money"
	"github.com/hedgie-app/hedgie_tgbot/internal/service"
	"github.com/hedgie-app/hedgie_tgbot/internal/sessionStore"
	"github.com/hedgie-app/hedgie_tgbot/utils"
)

type HedgieApi interface {
	Login(ctx context.Context, userID int64) (model.Identity, error)
	Trackers(ctx context.Context) ([]model.Tracker, error)
	Tracker(ctx context.Context, trackerID int64) (model.Tracker, error)
	Holdings(ctx context.Context, trackerID int64) ([]model.Holding, error)
	Portfolio(ctx context.Context, userID int64) (model.PortfolioSnapshot, error)
	SubmitInvestment(ctx context.Context, userID, trackerID, amountCLP int64) (model.InvestmentOutcome, error)
	Deposit(ctx context.Context, userID, amountCLP int64) (model.BalanceUpdate, error)
	Withdraw(ctx context.Context, userID, amountCLP int64) (model.BalanceUpdate, error)
	Balance(ctx context.Context, userID int64) (model.BalanceUpdate, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, snapshot model.PortfolioSnapshot, ownerName string) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type CopytradeService struct {
	cfg             *config.Config
	api             HedgieApi
	sessions        *sessionStore.Manager
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
	inFlight        sync.Map // chatID -> struct{}, re-entry guard per submission workflow
}

func New(
	cfg *config.Config,
	api HedgieApi,
	sessions *sessionStore.Manager,
	reportGenerator ReportGenerator,
	cloudStorage CloudStorage,
) *CopytradeService {
	return &CopytradeService{
		cfg:             cfg,
		api:             api,
		sessions:        sessions,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
	}
}

// Identity returns the chat's cached identity, restoring a persisted one on
// first access.
func (s *CopytradeService) Identity(ctx context.Context, chatID int64) (model.Identity, bool) {
	return s.sessions.Store(ctx, chatID).Identity()
}

func (s *CopytradeService) SignIn(ctx context.Context, chatID, userID int64) (model.Identity, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.SignIn"

	slog.Debug("SignIn start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("SignIn finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	identity, err := s.api.Login(ctx, userID)
	if err != nil {
		slog.Error("got error from api.Login", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Identity{}, err
	}

	store := s.sessions.Store(ctx, chatID)
	if err := store.SignIn(ctx, identity); err != nil {
		slog.Error("got error from store.SignIn", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Identity{}, err
	}

	return identity, nil
}

func (s *CopytradeService) SignOut(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.SignOut"

	err := s.sessions.Store(ctx, chatID).SignOut(ctx)
	if err != nil {
		slog.Error("got error from store.SignOut", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// Trackers fetches the catalog. Snapshots are fetched per view and never
// cached client-side.
func (s *CopytradeService) Trackers(ctx context.Context) ([]model.Tracker, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.Trackers"

	trackers, err := s.api.Trackers(ctx)
	if err != nil {
		slog.Error("got error from api.Trackers", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return trackers, nil
}

func (s *CopytradeService) Tracker(ctx context.Context, trackerID int64) (model.Tracker, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.Tracker"

	tracker, err := s.api.Tracker(ctx, trackerID)
	if err != nil {
		slog.Error("got error from api.Tracker", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Tracker{}, err
	}

	return tracker, nil
}

func (s *CopytradeService) TrackerDetails(ctx context.Context, trackerID int64) (model.Tracker, []model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.TrackerDetails"

	slog.Debug("TrackerDetails start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("trackerID", trackerID))
	defer func() {
		slog.Debug("TrackerDetails finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("trackerID", trackerID))
	}()

	tracker, err := s.api.Tracker(ctx, trackerID)
	if err != nil {
		slog.Error("got error from api.Tracker", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Tracker{}, nil, err
	}

	holdings, err := s.api.Holdings(ctx, trackerID)
	if err != nil {
		slog.Error("got error from api.Holdings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Tracker{}, nil, err
	}

	return tracker, holdings, nil
}

// SubmitInvestment runs one submission workflow instance:
// Idle -> Validating -> Submitting -> Succeeded/Failed.
//
// Validation failures (non-numeric, non-positive, over the cached balance)
// never reach the network. An amount exactly equal to the cached balance is
// allowed. On an accepted outcome the cached balance is overwritten with the
// server's remaining balance, never decremented locally; on any failure the
// cached balance stays untouched.
func (s *CopytradeService) SubmitInvestment(ctx context.Context, chatID, trackerID int64, rawAmount string) (model.InvestmentOutcome, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.SubmitInvestment"

	slog.Debug("SubmitInvestment start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.Int64("trackerID", trackerID))
	defer func() {
		slog.Debug("SubmitInvestment finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	store := s.sessions.Store(ctx, chatID)

	identity, ok := store.Identity()
	if !ok {
		return model.InvestmentOutcome{}, service.ErrNotAuthenticated
	}

	// Validating
	amountCLP, err := money.ParseCLP(rawAmount)
	if err != nil {
		slog.Debug("submission failed local validation", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.InvestmentOutcome{}, service.ErrInvalidAmount
	}

	if amountCLP > identity.BalanceCLP {
		slog.Debug(
			"submission exceeds cached balance",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int64("amountCLP", amountCLP),
			slog.Int64("balanceCLP", identity.BalanceCLP),
		)
		return model.InvestmentOutcome{}, service.ErrInsufficientFunds
	}

	// Submitting: at most one in-flight submission per chat
	if _, loaded := s.inFlight.LoadOrStore(chatID, struct{}{}); loaded {
		return model.InvestmentOutcome{}, service.ErrSubmissionInFlight
	}
	defer s.inFlight.Delete(chatID)

	gen := store.Generation()

	outcome, err := s.api.SubmitInvestment(ctx, identity.ID, trackerID, amountCLP)
	if err != nil {
		// Failed: the server is assumed not to have touched the balance on
		// rejection, so the cache stays as it was
		slog.Error("got error from api.SubmitInvestment", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.InvestmentOutcome{}, err
	}

	if outcome.Accepted && outcome.RemainingBalanceCLP != nil {
		// Succeeded: overwrite with the authoritative remaining balance.
		// This is the only write-path balance mutation outside login/logout.
		if err := store.UpdateBalance(ctx, gen, *outcome.RemainingBalanceCLP); err != nil {
			slog.Error("can't persist reconciled balance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	return outcome, nil
}

// Portfolio fetches the server-computed snapshot and reconciles the cached
// balance from it. The generation recorded before the fetch makes a result
// that arrives after a sign-out or user switch a silent no-op.
func (s *CopytradeService) Portfolio(ctx context.Context, chatID int64) (model.PortfolioSnapshot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.Portfolio"

	slog.Debug("Portfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("Portfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	store := s.sessions.Store(ctx, chatID)

	identity, ok := store.Identity()
	if !ok {
		return model.PortfolioSnapshot{}, service.ErrNotAuthenticated
	}

	gen := store.Generation()

	snapshot, err := s.api.Portfolio(ctx, identity.ID)
	if err != nil {
		slog.Error("got error from api.Portfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.PortfolioSnapshot{}, err
	}

	if !store.ReconcileBalance(gen, snapshot.AvailableBalanceCLP) {
		slog.Debug("stale portfolio result discarded", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}

	return snapshot, nil
}

func (s *CopytradeService) Deposit(ctx context.Context, chatID int64, rawAmount string) (model.BalanceUpdate, error) {
	return s.updateFunds(ctx, chatID, rawAmount, "CopytradeService.Deposit", s.api.Deposit)
}

func (s *CopytradeService) Withdraw(ctx context.Context, chatID int64, rawAmount string) (model.BalanceUpdate, error) {
	return s.updateFunds(ctx, chatID, rawAmount, "CopytradeService.Withdraw", s.api.Withdraw)
}

func (s *CopytradeService) updateFunds(
	ctx context.Context,
	chatID int64,
	rawAmount string,
	op string,
	call func(ctx context.Context, userID, amountCLP int64) (model.BalanceUpdate, error),
) (model.BalanceUpdate, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	store := s.sessions.Store(ctx, chatID)

	identity, ok := store.Identity()
	if !ok {
		return model.BalanceUpdate{}, service.ErrNotAuthenticated
	}

	amountCLP, err := money.ParseCLP(rawAmount)
	if err != nil {
		return model.BalanceUpdate{}, service.ErrInvalidAmount
	}

	gen := store.Generation()

	update, err := call(ctx, identity.ID, amountCLP)
	if err != nil {
		slog.Error("got error from account call", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.BalanceUpdate{}, err
	}

	// user-initiated change: reconcile and persist
	if err := store.UpdateBalance(ctx, gen, update.BalanceCLP); err != nil {
		slog.Error("can't persist reconciled balance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return update, nil
}

// Balance queries the authoritative balance directly and reconciles the cache
// from it.
func (s *CopytradeService) Balance(ctx context.Context, chatID int64) (model.BalanceUpdate, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.Balance"

	store := s.sessions.Store(ctx, chatID)

	identity, ok := store.Identity()
	if !ok {
		return model.BalanceUpdate{}, service.ErrNotAuthenticated
	}

	gen := store.Generation()

	update, err := s.api.Balance(ctx, identity.ID)
	if err != nil {
		slog.Error("got error from api.Balance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.BalanceUpdate{}, err
	}

	if err := store.UpdateBalance(ctx, gen, update.BalanceCLP); err != nil {
		slog.Error("can't persist reconciled balance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return update, nil
}

// PortfolioReport renders the chat's portfolio to a spreadsheet. Files above
// the Telegram upload limit are pushed to cloud storage and returned as a
// download link instead.
func (s *CopytradeService) PortfolioReport(ctx context.Context, chatID int64) (model.Report, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.PortfolioReport"

	slog.Debug("PortfolioReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("PortfolioReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	identity, ok := s.sessions.Store(ctx, chatID).Identity()
	if !ok {
		return model.Report{}, service.ErrNotAuthenticated
	}

	snapshot, err := s.Portfolio(ctx, chatID)
	if err != nil {
		return model.Report{}, err
	}

	if len(snapshot.Positions) == 0 {
		return model.Report{}, service.ErrEmptyPortfolio
	}

	fileBytes, fileExtension, err := s.reportGenerator.Generate(ctx, snapshot, identity.Name)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Report{}, err
	}

	filename := fmt.Sprintf("portfolio_%d_%s%s", identity.ID, time.Now().Format("2006-01-02"), fileExtension)

	if len(fileBytes) <= s.cfg.Telegram.FileLimitInBytes {
		return model.Report{FileBytes: fileBytes, Filename: filename}, nil
	}

	link, err := s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Report{}, err
	}

	return model.Report{Filename: filename, DownloadLink: link}, nil
}

// RefreshBalances re-fetches the portfolio of every signed-in chat and
// reconciles cached balances that drifted (another session, backend fees).
// Memory-only reconciliation; stale results are dropped by the generation
// guard. Runs as a scheduled job.
func (s *CopytradeService) RefreshBalances(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeService.RefreshBalances"

	var errs []error
	for _, store := range s.sessions.Snapshot() {
		identity, ok := store.Identity()
		if !ok {
			continue
		}

		gen := store.Generation()

		snapshot, err := s.api.Portfolio(ctx, identity.ID)
		if err != nil {
			slog.Warn(
				"can't refresh balance",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Int64("chatID", store.ChatID()),
				slog.String("err", err.Error()),
			)
			errs = append(errs, err)
			continue
		}

		store.ReconcileBalance(gen, snapshot.AvailableBalanceCLP)
	}

	return errors.Join(errs...)
}
