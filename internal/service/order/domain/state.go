// internal/service/order/domain/state.go
package domain

// AfterSaleStatus 售后单状态
type AfterSaleStatus int

const (
	AfterSaleUncreated      AfterSaleStatus = 0
	AfterSaleCommitted      AfterSaleStatus = 10
	AfterSaleReviewPass     AfterSaleStatus = 20
	AfterSaleReviewRejected AfterSaleStatus = 30
	AfterSaleRefunding      AfterSaleStatus = 40
	AfterSaleRefunded       AfterSaleStatus = 50
	AfterSaleFailed         AfterSaleStatus = 60
	AfterSaleRevoked        AfterSaleStatus = 127
)

func (s AfterSaleStatus) String() string {
	switch s {
	case AfterSaleUncreated:
		return "UNCREATED"
	case AfterSaleCommitted:
		return "COMMITTED"
	case AfterSaleReviewPass:
		return "REVIEW_PASS"
	case AfterSaleReviewRejected:
		return "REVIEW_REJECTED"
	case AfterSaleRefunding:
		return "REFUNDING"
	case AfterSaleRefunded:
		return "REFUNDED"
	case AfterSaleFailed:
		return "FAILED"
	case AfterSaleRevoked:
		return "REVOKED"
	default:
		return "UNKNOWN"
	}
}

// transitions 售后状态机，包初始化时构建
var transitions = map[AfterSaleStatus][]AfterSaleStatus{
	AfterSaleUncreated:  {AfterSaleCommitted, AfterSaleReviewPass},
	AfterSaleCommitted:  {AfterSaleReviewPass, AfterSaleReviewRejected, AfterSaleRevoked},
	AfterSaleReviewPass: {AfterSaleRefunding},
	AfterSaleRefunding:  {AfterSaleRefunded, AfterSaleFailed},
}

// CanTransit 是否存在 from -> to 的直接迁移
func CanTransit(from, to AfterSaleStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// reachable 从 from 出发经过一次或多次迁移能否到达 target
func reachable(from, target AfterSaleStatus) bool {
	seen := map[AfterSaleStatus]bool{from: true}
	queue := []AfterSaleStatus{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range transitions[cur] {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Reached 当前状态是否已经到达或越过 target
func Reached(current, target AfterSaleStatus) bool {
	return current == target || reachable(target, current)
}

// CheckTransition 在状态变更前重新校验当前状态。
// 当前状态等于 from 时返回 nil；已经越过 from (重复消息) 时返回 ErrAlreadyProcessed；
// 其它情况返回 ErrAfterSaleStatusIllegal。
func CheckTransition(current, from, to AfterSaleStatus) error {
	if !CanTransit(from, to) {
		return ErrAfterSaleStatusIllegal.WithMessage("after sale status cannot change from %s to %s", from, to)
	}
	if current == from {
		return nil
	}
	if reachable(from, current) {
		return ErrAlreadyProcessed
	}
	return ErrAfterSaleStatusIllegal.WithMessage("after sale status is %s, expected %s", current, from)
}
