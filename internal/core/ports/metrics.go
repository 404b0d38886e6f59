package ports

import "github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"

type Metrics interface {
	PermissionChecked(resource domain.Resource, action domain.Action, allowed bool)
	NotificationRecorded(kind domain.NotificationType)
	SequenceRetried()
	LivePush(result string)
	OutboxDispatched(result string)
}

type NopMetrics struct{}

func (NopMetrics) PermissionChecked(domain.Resource, domain.Action, bool) {}
func (NopMetrics) NotificationRecorded(domain.NotificationType)          {}
func (NopMetrics) SequenceRetried()                                      {}
func (NopMetrics) LivePush(string)                                       {}
func (NopMetrics) OutboxDispatched(string)                               {}
