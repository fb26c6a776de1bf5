package offer

import (
	"errors"
	"time"
)

// ErrNotSent 表示快照尚未发送，不能标记为已查看。
var ErrNotSent = errors.New("offer: snapshot has not been sent")

// Snapshot 是交给持久化协作方的可序列化快照。Totals 每次渲染重新计算，
// 存储中的值只作记录，不作为计算依据。
type Snapshot struct {
	OfferID    string     `json:"offerId,omitempty"`
	Document   Document   `json:"document"`
	Totals     Totals     `json:"totals"`
	Status     Status     `json:"status"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	ViewedAt   *time.Time `json:"viewedAt,omitempty"`
	RenderedAt time.Time  `json:"renderedAt"`
	PageCount  int        `json:"pageCount"`
}

// MarkSent 将快照置为已发送。
func (s *Snapshot) MarkSent(at time.Time) {
	at = at.UTC()
	s.Status = StatusSent
	s.SentAt = &at
}

// MarkViewed 记录首次查看时间；重复调用保持第一次的时间。
func (s *Snapshot) MarkViewed(at time.Time) error {
	switch s.Status {
	case StatusViewed:
		return nil
	case StatusSent:
		at = at.UTC()
		s.Status = StatusViewed
		s.ViewedAt = &at
		return nil
	default:
		return ErrNotSent
	}
}
