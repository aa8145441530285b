package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/pkg/logger"
)

type statusLogJob struct {
	orderID   string
	from      model.OrderStatus
	to        model.OrderStatus
	changedBy string
	at        time.Time
}

// StatusLogWriter 本地异步审计日志执行器：状态流转不阻塞在日志落库上
type StatusLogWriter struct {
	db *gorm.DB
	ch chan statusLogJob
}

func NewStatusLogWriter(db *gorm.DB, queueSize int) *StatusLogWriter {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &StatusLogWriter{db: db, ch: make(chan statusLogJob, queueSize)}
}

func (w *StatusLogWriter) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-w.ch:
					w.write(job)
				case <-stopCh:
					// 停机前清空残留队列，避免丢审计记录
					for {
						select {
						case job := <-w.ch:
							w.write(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		// 等待队列自然排空一小段时间
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(w.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

func (w *StatusLogWriter) write(job statusLogJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := &model.StatusLog{
		ID:        uuid.New().String(),
		OrderID:   job.orderID,
		From:      job.from,
		To:        job.to,
		ChangedBy: job.changedBy,
		CreatedAt: job.at,
	}
	if err := w.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Warn("status log write failed",
			zap.String("order", job.orderID), zap.Error(err))
	}
}

func (w *StatusLogWriter) Enqueue(orderID string, from, to model.OrderStatus, changedBy string) {
	select {
	case w.ch <- statusLogJob{orderID: orderID, from: from, to: to, changedBy: changedBy, at: time.Now()}:
	default:
		logger.Warn("status log queue full, drop entry",
			zap.String("order", orderID), zap.String("to", string(to)))
	}
}

// QueueLen 返回当前队列长度（采样值）。
func (w *StatusLogWriter) QueueLen() int { return len(w.ch) }
