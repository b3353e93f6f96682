package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type ListFailedInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum number of jobs to return"`
}

type ListFailedOutput struct {
	Body []*domain.Notification
}

type RequeueInput struct {
	ID uuid.UUID `path:"id" doc:"Notification ID"`
}

// RegisterNotificationRoutes mounts operator endpoints for dead-lettered
// notifications.
func RegisterNotificationRoutes(api huma.API, ops NotificationOperator) {
	huma.Register(api, huma.Operation{
		OperationID: "list-failed-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications/failed",
		Summary:     "List notifications that exhausted their retries",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListFailedInput) (*ListFailedOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		list, err := ops.ListFailed(ctx, p, input.Limit)
		if err != nil {
			return nil, toHTTPError("list failed notifications", err)
		}
		return &ListFailedOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "requeue-notification",
		Method:        http.MethodPost,
		Path:          "/notifications/{id}/requeue",
		Summary:       "Put a failed notification back in the queue",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *RequeueInput) (*struct{}, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		if err := ops.Requeue(ctx, p, input.ID); err != nil {
			return nil, toHTTPError("requeue notification", err)
		}
		return nil, nil //nolint:nilnil // 204 No Content
	})
}
