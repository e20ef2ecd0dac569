package embedding

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 基于testify/mock的嵌入客户端
type MockClient struct {
	mock.Mock
}

// NewMockClient 创建Mock客户端，测试结束时校验期望
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Embed 实现Client接口
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

// EmbedBatch 实现Client接口
func (m *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if fn, ok := args.Get(0).(func([]string) [][]float32); ok {
		return fn(texts), args.Error(1)
	}
	vectors, _ := args.Get(0).([][]float32)
	return vectors, args.Error(1)
}

// Dimensions 实现Client接口
func (m *MockClient) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

// Name 实现Client接口
func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}
