package routing

import (
	"fmt"

	"shopbridge/internal/fulfillment"
)

// Stage names the pipeline phase a routing outcome belongs to, so callers
// can branch on the failure locus.
type Stage string

const (
	StageFetch          Stage = "fetch"
	StageValidate       Stage = "validate"
	StageTransform      Stage = "transform"
	StageCheckInventory Stage = "check_inventory"
	StageCreateMCF      Stage = "create_mcf"
)

// RoutingError is a stage-tagged pipeline failure.
type RoutingError struct {
	Stage   Stage
	Code    string
	Message string
	Err     error
}

func (e *RoutingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// RoutingResult is the per-order outcome of one routing attempt. It is an
// ephemeral value object; the router stores nothing.
type RoutingResult struct {
	OrderID            string
	Success            bool
	FulfillmentOrderID string
	Warnings           []string
	Err                *RoutingError
	// Confirmed holds the best-effort post-creation detail fetch; nil when
	// confirmation failed or was skipped, without downgrading the result.
	Confirmed *fulfillment.OrderDetail
}

// Stage reports which stage the result belongs to: the failing stage, or
// create_mcf for a success.
func (r RoutingResult) Stage() Stage {
	if r.Err != nil {
		return r.Err.Stage
	}
	return StageCreateMCF
}

func failure(orderID string, stage Stage, code, message string, warnings []string, err error) RoutingResult {
	return RoutingResult{
		OrderID:  orderID,
		Warnings: warnings,
		Err: &RoutingError{
			Stage:   stage,
			Code:    code,
			Message: message,
			Err:     err,
		},
	}
}
