// Package triggers defines the contract for mechanisms that initiate
// workflow runs.
package triggers

import "context"

// Callback is invoked with trigger metadata each time a trigger fires.
type Callback func(ctx context.Context, data map[string]any) error

// Trigger starts workflow runs in response to an external condition.
type Trigger interface {
	Start(ctx context.Context, callback Callback) error
	Stop(ctx context.Context) error
}
