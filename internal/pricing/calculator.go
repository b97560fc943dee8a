package pricing

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/money"
)

// Item is one candidate order line as submitted by the customer.
type Item struct {
	ServiceID uuid.UUID
	Qty       int
}

// Input carries everything PriceOrder needs. Services must already be
// resolved from the catalog; the calculator performs no I/O.
type Input struct {
	Services              map[uuid.UUID]models.Service
	Items                 []Item
	HasActiveSubscription bool
	BagsRemaining         int
	TipCents              money.Cents
	TaxRateBasisPoints    int64
}

// Line is one priced line of the calculation.
type Line struct {
	ServiceID      uuid.UUID
	ServiceName    string
	Classification string
	Qty            int
	CoveredQty     int
	BasePriceCents money.Cents
	UnitPriceCents money.Cents
	TotalCents     money.Cents
}

// CostCalculation is the immutable result of pricing an order.
type CostCalculation struct {
	Lines                     []Line
	SubtotalCents             money.Cents
	SubscriptionDiscountCents money.Cents
	FinalSubtotalCents        money.Cents
	TaxCents                  money.Cents
	TipCents                  money.Cents
	TotalCents                money.Cents
	CoveredBags               int
	HasSubscriptionBenefits   bool
}

// PriceOrder prices the candidate items against the remaining entitlement.
// Coverage is greedy in submission order: the first BagsRemaining
// entitlement-classified units are free, overflow units are charged at the
// service's extra unit price, and extras and add-ons are always charged at
// base price. Without an active subscription every unit is charged at base
// price. Tax applies to the final subtotal once; the tip is added untaxed.
func PriceOrder(input Input) (*CostCalculation, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidOrderItems, "order has no items")
	}
	if input.TipCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidOrderItems, "tip must not be negative")
	}

	remaining := input.BagsRemaining
	if !input.HasActiveSubscription || remaining < 0 {
		remaining = 0
	}

	lines := make([]Line, 0, len(input.Items))
	var gross, final, discount money.Cents
	coveredBags := 0

	for i, item := range input.Items {
		svc, ok := input.Services[item.ServiceID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidOrderItems, fmt.Sprintf("item %d references unknown service %s", i, item.ServiceID))
		}
		if item.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidOrderItems, fmt.Sprintf("item %d has non-positive quantity %d", i, item.Qty))
		}

		base := money.Cents(svc.BasePriceCents)
		line := Line{
			ServiceID:      svc.ID,
			ServiceName:    svc.Name,
			Classification: svc.Classification.String(),
			Qty:            item.Qty,
			BasePriceCents: base,
			UnitPriceCents: base,
		}

		lineGross := base.MulInt(int64(item.Qty))
		lineTotal := lineGross

		if input.HasActiveSubscription && svc.Classification.CountsAgainstAllowance() {
			covered := item.Qty
			if covered > remaining {
				covered = remaining
			}
			remaining -= covered
			coveredBags += covered

			overflow := item.Qty - covered
			extra := money.Cents(svc.ExtraUnitPriceCents)
			lineTotal = extra.MulInt(int64(overflow))
			line.CoveredQty = covered
			line.UnitPriceCents = extra
		}

		line.TotalCents = lineTotal
		lines = append(lines, line)

		gross = gross.Add(lineGross)
		final = final.Add(lineTotal)
		discount = discount.Add(lineGross.Sub(lineTotal))
	}

	tax := final.ApplyBasisPoints(input.TaxRateBasisPoints)
	total := final.Add(tax).Add(input.TipCents)

	return &CostCalculation{
		Lines:                     lines,
		SubtotalCents:             gross,
		SubscriptionDiscountCents: discount,
		FinalSubtotalCents:        final,
		TaxCents:                  tax,
		TipCents:                  input.TipCents,
		TotalCents:                total,
		CoveredBags:               coveredBags,
		HasSubscriptionBenefits:   input.HasActiveSubscription && coveredBags > 0,
	}, nil
}
