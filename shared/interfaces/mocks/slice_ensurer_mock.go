package mocks

import (
	"context"

	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockSliceEnsurer is a mock type for the SliceEnsurer type
type MockSliceEnsurer struct {
	mock.Mock
}

// Ensure provides a mock function with given fields: ctx, storyID, sessionID, sliceID, opts
func (_m *MockSliceEnsurer) Ensure(ctx context.Context, storyID, sessionID, sliceID string, opts models.EnsureOptions) (string, error) {
	ret := _m.Called(ctx, storyID, sessionID, sliceID, opts)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, models.EnsureOptions) string); ok {
		r0 = rf(ctx, storyID, sessionID, sliceID, opts)
	} else {
		r0 = ret.String(0)
	}
	return r0, ret.Error(1)
}

// NewMockSliceEnsurer creates a new instance of MockSliceEnsurer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSliceEnsurer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSliceEnsurer {
	m := &MockSliceEnsurer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.SliceEnsurer = (*MockSliceEnsurer)(nil)
