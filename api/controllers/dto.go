package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/internal/orders"
	"github.com/freshfold/freshfold-backend/internal/pricing"
	"github.com/freshfold/freshfold-backend/internal/proration"
	"github.com/freshfold/freshfold-backend/internal/usage"
	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/money"
)

type planResponse struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	Price           money.Amount `json:"price"`
	PickupsPerMonth int          `json:"pickups_per_month"`
	BagsPerPickup   int          `json:"bags_per_pickup"`
	BagsAllowed     int          `json:"bags_allowed"`
	Features        []string     `json:"features"`
}

func toPlanResponse(plan models.Plan) planResponse {
	features := []string(plan.Features)
	if features == nil {
		features = []string{}
	}
	return planResponse{
		ID:              plan.ID,
		Name:            plan.Name,
		Price:           money.Amount(plan.PriceCents),
		PickupsPerMonth: plan.PickupsPerMonth,
		BagsPerPickup:   plan.BagsPerPickup,
		BagsAllowed:     plan.BagsAllowed(),
		Features:        features,
	}
}

type serviceResponse struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	DisplayName    string       `json:"display_name"`
	Classification string       `json:"classification"`
	BasePrice      money.Amount `json:"base_price"`
	ExtraUnitPrice money.Amount `json:"extra_unit_price"`
}

func toServiceResponse(svc models.Service) serviceResponse {
	return serviceResponse{
		ID:             svc.ID,
		Name:           svc.Name,
		DisplayName:    svc.DisplayName,
		Classification: svc.Classification.String(),
		BasePrice:      money.Amount(svc.BasePriceCents),
		ExtraUnitPrice: money.Amount(svc.ExtraUnitPriceCents),
	}
}

type costLineResponse struct {
	ServiceID      uuid.UUID    `json:"service_id"`
	ServiceName    string       `json:"service_name"`
	Classification string       `json:"classification"`
	Qty            int          `json:"qty"`
	CoveredQty     int          `json:"covered_qty"`
	BasePrice      money.Amount `json:"base_price"`
	UnitPrice      money.Amount `json:"unit_price"`
	Total          money.Amount `json:"total"`
}

type costCalculationResponse struct {
	Lines                   []costLineResponse `json:"lines"`
	Subtotal                money.Amount       `json:"subtotal"`
	SubscriptionDiscount    money.Amount       `json:"subscription_discount"`
	FinalSubtotal           money.Amount       `json:"final_subtotal"`
	Tax                     money.Amount       `json:"tax"`
	Tip                     money.Amount       `json:"tip"`
	Total                   money.Amount       `json:"total"`
	CoveredBags             int                `json:"covered_bags"`
	HasSubscriptionBenefits bool               `json:"has_subscription_benefits"`
}

func toCostCalculationResponse(calc *pricing.CostCalculation) costCalculationResponse {
	lines := make([]costLineResponse, 0, len(calc.Lines))
	for _, line := range calc.Lines {
		lines = append(lines, costLineResponse{
			ServiceID:      line.ServiceID,
			ServiceName:    line.ServiceName,
			Classification: line.Classification,
			Qty:            line.Qty,
			CoveredQty:     line.CoveredQty,
			BasePrice:      money.Amount(line.BasePriceCents),
			UnitPrice:      money.Amount(line.UnitPriceCents),
			Total:          money.Amount(line.TotalCents),
		})
	}
	return costCalculationResponse{
		Lines:                   lines,
		Subtotal:                money.Amount(calc.SubtotalCents),
		SubscriptionDiscount:    money.Amount(calc.SubscriptionDiscountCents),
		FinalSubtotal:           money.Amount(calc.FinalSubtotalCents),
		Tax:                     money.Amount(calc.TaxCents),
		Tip:                     money.Amount(calc.TipCents),
		Total:                   money.Amount(calc.TotalCents),
		CoveredBags:             calc.CoveredBags,
		HasSubscriptionBenefits: calc.HasSubscriptionBenefits,
	}
}

type usageResponse struct {
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	PlanID           uuid.UUID `json:"plan_id"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	PickupsAllowed   int       `json:"pickups_allowed"`
	PickupsUsed      int       `json:"pickups_used"`
	PickupsRemaining int       `json:"pickups_remaining"`
	BagsAllowed      int       `json:"bags_allowed"`
	BagsUsed         int       `json:"bags_used"`
	BagsRemaining    int       `json:"bags_remaining"`
}

func toUsageResponse(snap *usage.Snapshot) usageResponse {
	return usageResponse{
		SubscriptionID:   snap.SubscriptionID,
		PlanID:           snap.PlanID,
		PeriodStart:      snap.PeriodStart,
		PeriodEnd:        snap.PeriodEnd,
		PickupsAllowed:   snap.PickupsAllowed,
		PickupsUsed:      snap.PickupsUsed,
		PickupsRemaining: snap.PickupsRemaining,
		BagsAllowed:      snap.BagsAllowed,
		BagsUsed:         snap.BagsUsed,
		BagsRemaining:    snap.BagsRemaining,
	}
}

type quoteResponse struct {
	Calculation costCalculationResponse `json:"calculation"`
	Usage       *usageResponse          `json:"usage,omitempty"`
}

func toQuoteResponse(quote *orders.Quote) quoteResponse {
	resp := quoteResponse{Calculation: toCostCalculationResponse(quote.Calculation)}
	if quote.Usage != nil {
		u := toUsageResponse(quote.Usage)
		resp.Usage = &u
	}
	return resp
}

type orderItemResponse struct {
	ServiceID      uuid.UUID    `json:"service_id"`
	ServiceName    string       `json:"service_name"`
	Classification string       `json:"classification"`
	Qty            int          `json:"qty"`
	CoveredQty     int          `json:"covered_qty"`
	UnitPrice      money.Amount `json:"unit_price"`
	BasePrice      money.Amount `json:"base_price"`
	Total          money.Amount `json:"total"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	SubscriptionID *uuid.UUID          `json:"subscription_id,omitempty"`
	Status         string              `json:"status"`
	PickupDate     time.Time           `json:"pickup_date"`
	DeliveryDate   *time.Time          `json:"delivery_date,omitempty"`
	Subtotal       money.Amount        `json:"subtotal"`
	Discount       money.Amount        `json:"discount"`
	Tax            money.Amount        `json:"tax"`
	Tip            money.Amount        `json:"tip"`
	Total          money.Amount        `json:"total"`
	CoveredBags    int                 `json:"covered_bags"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
}

func toOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ServiceID:      item.ServiceID,
			ServiceName:    item.ServiceName,
			Classification: item.Classification.String(),
			Qty:            item.Qty,
			CoveredQty:     item.CoveredQty,
			UnitPrice:      money.Amount(item.UnitPriceCents),
			BasePrice:      money.Amount(item.BasePriceCents),
			Total:          money.Amount(item.TotalCents),
		})
	}
	return orderResponse{
		ID:             order.ID,
		SubscriptionID: order.SubscriptionID,
		Status:         order.Status.String(),
		PickupDate:     order.PickupDate,
		DeliveryDate:   order.DeliveryDate,
		Subtotal:       money.Amount(order.SubtotalCents),
		Discount:       money.Amount(order.DiscountCents),
		Tax:            money.Amount(order.TaxCents),
		Tip:            money.Amount(order.TipCents),
		Total:          money.Amount(order.TotalCents),
		CoveredBags:    order.CoveredBags,
		Items:          items,
		CreatedAt:      order.CreatedAt,
	}
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PlanID             uuid.UUID  `json:"plan_id"`
	PlanName           string     `json:"plan_name,omitempty"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

func toSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                 sub.ID,
		PlanID:             sub.PlanID,
		Status:             sub.Status.String(),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		PausedAt:           sub.PausedAt,
		CancelledAt:        sub.CancelledAt,
	}
	if sub.Plan != nil {
		resp.PlanName = sub.Plan.Name
	}
	return resp
}

type prorationResponse struct {
	SubscriptionID        uuid.UUID    `json:"subscription_id"`
	CurrentPlanID         uuid.UUID    `json:"current_plan_id"`
	CurrentPlanName       string       `json:"current_plan_name"`
	NewPlanID             uuid.UUID    `json:"new_plan_id"`
	NewPlanName           string       `json:"new_plan_name"`
	DaysRemaining         int64        `json:"days_remaining"`
	PeriodDays            int64        `json:"period_days"`
	UnusedCredit          money.Amount `json:"unused_credit"`
	NewPlanCharge         money.Amount `json:"new_plan_charge"`
	ImmediateCharge       money.Amount `json:"immediate_charge"`
	ImmediateCredit       money.Amount `json:"immediate_credit"`
	NewBillingDate        time.Time    `json:"new_billing_date"`
	RequiresPaymentMethod bool         `json:"requires_payment_method"`
	Description           string       `json:"description"`
}

func toProrationResponse(preview *proration.Preview) prorationResponse {
	return prorationResponse{
		SubscriptionID:        preview.SubscriptionID,
		CurrentPlanID:         preview.CurrentPlanID,
		CurrentPlanName:       preview.CurrentPlanName,
		NewPlanID:             preview.NewPlanID,
		NewPlanName:           preview.NewPlanName,
		DaysRemaining:         preview.DaysRemaining,
		PeriodDays:            preview.PeriodDays,
		UnusedCredit:          money.Amount(preview.UnusedCreditCents),
		NewPlanCharge:         money.Amount(preview.NewPlanChargeCents),
		ImmediateCharge:       money.Amount(preview.ImmediateChargeCents),
		ImmediateCredit:       money.Amount(preview.ImmediateCreditCents),
		NewBillingDate:        preview.NewBillingDate,
		RequiresPaymentMethod: preview.RequiresPaymentMethod,
		Description:           preview.Description,
	}
}
