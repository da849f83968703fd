package worker

import (
	"github.com/hibiken/asynq"

	"settlement/internal/utils"
)

// RedisOpt builds the asynq connection for the receipt queue.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}

func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: utils.L().Sugar(),
	})
}

func NewMux(h ReceiptEmailHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeReceiptEmail, h)
	return mux
}
