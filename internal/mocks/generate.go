// Package mocks provides gomock implementations of the core interfaces.
//
// The mocks are generated with go.uber.org/mock from go:generate directives.
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(1), nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/commercekit/orderworker/internal/core JobRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=order_repository_mock.go github.com/commercekit/orderworker/internal/core OrderRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=broker_mock.go github.com/commercekit/orderworker/internal/core Broker

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=result_store_mock.go github.com/commercekit/orderworker/internal/core ResultStore
