package service

import "errors"

var (
	ErrNotAuthenticated   = errors.New("error not authenticated")
	ErrInvalidAmount      = errors.New("error invalid amount")
	ErrInsufficientFunds  = errors.New("error insufficient funds")
	ErrSubmissionInFlight = errors.New("error submission already in flight")
	ErrEmptyPortfolio     = errors.New("error portfolio is empty")
)
