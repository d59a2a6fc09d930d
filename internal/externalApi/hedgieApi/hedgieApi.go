// Package hedgieApi is the typed gateway to the Hedgie REST backend. Each
// operation performs exactly one HTTP call and returns the decoded body; no
// operation retries. Path shapes are a fixed contract: the backend route
// table distinguishes trailing-slash collection endpoints (trackers/,
// invest/) from resource-id paths and tolerates no mismatch.
package hedgieApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hedgie-app/hedgie_tgbot/config"
	"github.com/hedgie-app/hedgie_tgbot/internal/converter/apiConverter"
	"github.com/hedgie-app/hedgie_tgbot/internal/externalApi"
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/model/apiModel"
	"github.com/hedgie-app/hedgie_tgbot/utils"
)

const (
	fallbackErrDetail = "request failed"
	orderErrDetail    = "order failed"
)

type HedgieApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *HedgieApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.HedgieApi.Url).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HedgieApi{client: client}
}

func (a *HedgieApi) Login(ctx context.Context, userID int64) (model.Identity, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/auth/dev-login"

	slog.Debug("start HedgieApi.Login request", slog.String("rqID", rqID), slog.Int64("userID", userID))

	resp, err := a.client.R().
		SetBody(apiModel.LoginRequest{UserID: userID}).
		Post(url)

	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Identity{}, err
	}

	if resp.IsError() {
		return model.Identity{}, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	user := apiModel.UserResponse{}
	err = json.Unmarshal(resp.Body(), &user)
	if err != nil {
		slog.Error("can't unmarshall response into apiModel.UserResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Identity{}, err
	}

	slog.Debug("HedgieApi.Login request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertIdentity(user), nil
}

func (a *HedgieApi) Trackers(ctx context.Context) ([]model.Tracker, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/trackers/" // collection endpoint, trailing slash required

	slog.Debug("start HedgieApi.Trackers request", slog.String("rqID", rqID))

	resp, err := a.client.R().Get(url)
	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	if resp.IsError() {
		return nil, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	trackers := []apiModel.Tracker{}
	err = json.Unmarshal(resp.Body(), &trackers)
	if err != nil {
		slog.Error("can't unmarshall response into []apiModel.Tracker", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	slog.Debug("HedgieApi.Trackers request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertTrackers(trackers), nil
}

func (a *HedgieApi) Tracker(ctx context.Context, trackerID int64) (model.Tracker, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/trackers/%d", trackerID)

	slog.Debug("start HedgieApi.Tracker request", slog.String("rqID", rqID), slog.Int64("trackerID", trackerID))

	resp, err := a.client.R().Get(url)
	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Tracker{}, err
	}

	if resp.IsError() {
		return model.Tracker{}, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	tracker := apiModel.Tracker{}
	err = json.Unmarshal(resp.Body(), &tracker)
	if err != nil {
		slog.Error("can't unmarshall response into apiModel.Tracker", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Tracker{}, err
	}

	slog.Debug("HedgieApi.Tracker request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertTracker(tracker), nil
}

func (a *HedgieApi) Holdings(ctx context.Context, trackerID int64) ([]model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/trackers/%d/holdings", trackerID)

	slog.Debug("start HedgieApi.Holdings request", slog.String("rqID", rqID), slog.Int64("trackerID", trackerID))

	resp, err := a.client.R().Get(url)
	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	if resp.IsError() {
		return nil, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	holdings := []apiModel.Holding{}
	err = json.Unmarshal(resp.Body(), &holdings)
	if err != nil {
		slog.Error("can't unmarshall response into []apiModel.Holding", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	slog.Debug("HedgieApi.Holdings request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertHoldings(holdings), nil
}

func (a *HedgieApi) Portfolio(ctx context.Context, userID int64) (model.PortfolioSnapshot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/portfolio/%d", userID)

	slog.Debug("start HedgieApi.Portfolio request", slog.String("rqID", rqID), slog.Int64("userID", userID))

	resp, err := a.client.R().Get(url)
	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.PortfolioSnapshot{}, err
	}

	if resp.IsError() {
		return model.PortfolioSnapshot{}, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	portfolio := apiModel.Portfolio{}
	err = json.Unmarshal(resp.Body(), &portfolio)
	if err != nil {
		slog.Error("can't unmarshall response into apiModel.Portfolio", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.PortfolioSnapshot{}, err
	}

	slog.Debug("HedgieApi.Portfolio request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertPortfolio(portfolio), nil
}

func (a *HedgieApi) SubmitInvestment(ctx context.Context, userID, trackerID, amountCLP int64) (model.InvestmentOutcome, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/invest/" // collection endpoint, trailing slash required

	slog.Debug(
		"start HedgieApi.SubmitInvestment request",
		slog.String("rqID", rqID),
		slog.Int64("userID", userID),
		slog.Int64("trackerID", trackerID),
		slog.Int64("amountCLP", amountCLP),
	)

	resp, err := a.client.R().
		SetBody(apiModel.InvestmentRequest{UserID: userID, TrackerID: trackerID, AmountCLP: amountCLP}).
		Post(url)

	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.InvestmentOutcome{}, err
	}

	if resp.IsError() {
		return model.InvestmentOutcome{}, a.normalizedError(ctx, resp, orderErrDetail)
	}

	investment := apiModel.InvestmentResponse{}
	err = json.Unmarshal(resp.Body(), &investment)
	if err != nil {
		slog.Error("can't unmarshall response into apiModel.InvestmentResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.InvestmentOutcome{}, err
	}

	outcome := apiConverter.ConvertInvestmentOutcome(investment)
	if !outcome.Accepted && outcome.Message == "" {
		outcome.Message = orderErrDetail
	}

	slog.Debug("HedgieApi.SubmitInvestment request complete", slog.String("rqID", rqID), slog.Bool("accepted", outcome.Accepted))

	return outcome, nil
}

func (a *HedgieApi) Deposit(ctx context.Context, userID, amountCLP int64) (model.BalanceUpdate, error) {
	return a.postAmount(ctx, fmt.Sprintf("/user/%d/deposit", userID), "HedgieApi.Deposit", amountCLP)
}

func (a *HedgieApi) Withdraw(ctx context.Context, userID, amountCLP int64) (model.BalanceUpdate, error) {
	return a.postAmount(ctx, fmt.Sprintf("/user/%d/withdraw", userID), "HedgieApi.Withdraw", amountCLP)
}

func (a *HedgieApi) Balance(ctx context.Context, userID int64) (model.BalanceUpdate, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/user/%d/balance", userID)

	slog.Debug("start HedgieApi.Balance request", slog.String("rqID", rqID), slog.Int64("userID", userID))

	resp, err := a.client.R().Get(url)
	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.BalanceUpdate{}, err
	}

	if resp.IsError() {
		return model.BalanceUpdate{}, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	balance := apiModel.BalanceResponse{}
	err = json.Unmarshal(resp.Body(), &balance)
	if err != nil {
		slog.Error("can't unmarshall response into apiModel.BalanceResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.BalanceUpdate{}, err
	}

	slog.Debug("HedgieApi.Balance request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertBalanceUpdate(balance), nil
}

func (a *HedgieApi) postAmount(ctx context.Context, url, op string, amountCLP int64) (model.BalanceUpdate, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("start "+op+" request", slog.String("rqID", rqID), slog.Int64("amountCLP", amountCLP))

	resp, err := a.client.R().
		SetBody(apiModel.AmountRequest{AmountCLP: amountCLP}).
		Post(url)

	if err != nil {
		slog.Error("error while dialing HedgieApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.BalanceUpdate{}, err
	}

	if resp.IsError() {
		return model.BalanceUpdate{}, a.normalizedError(ctx, resp, fallbackErrDetail)
	}

	balance := apiModel.BalanceResponse{}
	err = json.Unmarshal(resp.Body(), &balance)
	if err != nil {
		slog.Error("can't unmarshall response into apiModel.BalanceResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.BalanceUpdate{}, err
	}

	slog.Debug(op+" request complete", slog.String("rqID", rqID))

	return apiConverter.ConvertBalanceUpdate(balance), nil
}

// normalizedError flattens a non-2xx body into an APIError. Handled shapes:
// {"detail":[{"msg":...},...]}, {"detail":"..."}, {"error":"..."}; anything
// else falls back to the given generic detail.
func (a *HedgieApi) normalizedError(ctx context.Context, resp *resty.Response, fallback string) *externalApi.APIError {
	rqID := utils.GetRequestIDFromCtx(ctx)

	apiErr := parseErrorBody(resp.StatusCode(), resp.Body(), fallback)

	slog.Warn(
		"HedgieApi returned error response",
		slog.String("rqID", rqID),
		slog.Int("status", apiErr.StatusCode),
		slog.String("detail", apiErr.Detail),
	)

	return apiErr
}

func parseErrorBody(statusCode int, body []byte, fallback string) *externalApi.APIError {
	unknown := &externalApi.APIError{Kind: externalApi.ErrKindUnknown, StatusCode: statusCode, Detail: fallback}

	parsed := apiModel.ErrorResponse{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return unknown
	}

	if len(parsed.Detail) > 0 {
		msgs := []apiModel.ValidationMessage{}
		if err := json.Unmarshal(parsed.Detail, &msgs); err == nil {
			parts := make([]string, 0, len(msgs))
			for _, m := range msgs {
				if m.Msg != "" {
					parts = append(parts, m.Msg)
				}
			}
			if len(parts) > 0 {
				return &externalApi.APIError{Kind: externalApi.ErrKindValidation, StatusCode: statusCode, Detail: strings.Join(parts, ", ")}
			}
			return unknown
		}

		var detail string
		if err := json.Unmarshal(parsed.Detail, &detail); err == nil && detail != "" {
			return &externalApi.APIError{Kind: externalApi.ErrKindRejected, StatusCode: statusCode, Detail: detail}
		}
	}

	if parsed.Error != "" {
		return &externalApi.APIError{Kind: externalApi.ErrKindRejected, StatusCode: statusCode, Detail: parsed.Error}
	}

	return unknown
}
