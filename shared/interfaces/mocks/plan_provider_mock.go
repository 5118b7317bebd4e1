package mocks

import (
	"context"

	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockPlanProvider is a mock type for the PlanProvider type
type MockPlanProvider struct {
	mock.Mock
}

// GetPlan provides a mock function with given fields: ctx, storyID
func (_m *MockPlanProvider) GetPlan(ctx context.Context, storyID string) (*models.StoryPlan, error) {
	ret := _m.Called(ctx, storyID)

	var r0 *models.StoryPlan
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.StoryPlan); ok {
		r0 = rf(ctx, storyID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryPlan)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, storyID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Invalidate provides a mock function with given fields: storyID
func (_m *MockPlanProvider) Invalidate(storyID string) {
	_m.Called(storyID)
}

// ListStories provides a mock function with given fields: ctx
func (_m *MockPlanProvider) ListStories(ctx context.Context) ([]string, error) {
	ret := _m.Called(ctx)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// NewMockPlanProvider creates a new instance of MockPlanProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockPlanProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPlanProvider {
	m := &MockPlanProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.PlanProvider = (*MockPlanProvider)(nil)
