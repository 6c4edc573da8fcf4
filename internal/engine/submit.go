package engine

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rupeevault/backend/internal/models"
)

var (
	ifscPattern        = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	bankAccountPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
)

// SubmitWithdrawal creates a withdrawal request in pending and reserves the
// amount: available moves to blocked in the same transaction that persists
// the request. The account-hold flag and the KYC threshold are enforced
// before any state is touched.
func (e *Engine) SubmitWithdrawal(ctx context.Context, userID uuid.UUID, in models.SubmitWithdrawalInput) (*models.MovementRequest, error) {
	if in.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !bankAccountPattern.MatchString(in.BankAccount) {
		return nil, fmt.Errorf("%w: bank account number must be 9-18 digits", ErrValidation)
	}
	if !ifscPattern.MatchString(in.IFSC) {
		return nil, fmt.Errorf("%w: malformed IFSC code", ErrValidation)
	}
	if in.AccountHolder == "" {
		return nil, fmt.Errorf("%w: account holder name is required", ErrValidation)
	}

	acc, err := e.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, mapAccountErr(err)
	}
	if acc.WithdrawalsBlocked {
		return nil, fmt.Errorf("%w: submit an unhold request first", ErrAccountOnHold)
	}
	if in.AmountPaise >= e.cfg.KYCThresholdPaise {
		approved, err := e.kyc.Approved(ctx, userID)
		if err != nil {
			e.log.Warn("kyc check failed, treating as not approved", "user_id", userID, "error", err)
			approved = false
		}
		if !approved {
			return nil, fmt.Errorf("%w: kyc approval required for this amount", ErrValidation)
		}
	}

	req := &models.MovementRequest{
		ID:               uuid.New(),
		UserID:           userID,
		Kind:             models.KindWithdrawal,
		Status:           models.StatusPending,
		AmountPaise:      in.AmountPaise,
		BankAccount:      in.BankAccount,
		IFSC:             in.IFSC,
		AccountHolder:    in.AccountHolder,
		FinalAmountPaise: in.AmountPaise,
	}
	err = e.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := e.ledger.Reserve(ctx, tx, userID, in.AmountPaise); err != nil {
			return err
		}
		if err := e.registry.Create(ctx, tx, req); err != nil {
			return err
		}
		return e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: req.ID, To: models.StatusPending, Actor: "user:" + userID.String(), Reason: "submitted",
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SubmitDeposit creates a deposit request in pending. No funds move until
// the deposit is confirmed; the final amount after any discount is computed
// up front and recorded on the request.
func (e *Engine) SubmitDeposit(ctx context.Context, userID uuid.UUID, in models.SubmitDepositInput) (*models.MovementRequest, error) {
	if in.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	final, err := e.QuoteDeposit(ctx, in.AmountPaise, in.DiscountCode)
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.GetBalance(ctx, userID); err != nil {
		return nil, mapAccountErr(err)
	}

	req := &models.MovementRequest{
		ID:               uuid.New(),
		UserID:           userID,
		Kind:             models.KindDeposit,
		Status:           models.StatusPending,
		AmountPaise:      in.AmountPaise,
		PaymentMethod:    in.PaymentMethod,
		DiscountCode:     in.DiscountCode,
		FinalAmountPaise: final,
	}
	err = e.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := e.registry.Create(ctx, tx, req); err != nil {
			return err
		}
		return e.registry.AppendTransition(ctx, tx, &models.Transition{
			RequestID: req.ID, To: models.StatusPending, Actor: "user:" + userID.String(), Reason: "submitted",
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// QuoteDeposit computes the final amount a deposit of amountPaise with the
// given discount code would credit. It is a pure query: quoting and then
// submitting with the same input yields the same final amount.
func (e *Engine) QuoteDeposit(ctx context.Context, amountPaise int64, discountCode string) (int64, error) {
	if amountPaise <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if discountCode == "" {
		return amountPaise, nil
	}
	pct, ok, err := e.discount.PercentOff(ctx, discountCode)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: unknown discount code %q", ErrValidation, discountCode)
	}
	final := decimal.NewFromInt(amountPaise).
		Mul(decimal.NewFromInt(100).Sub(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return final.IntPart(), nil
}
