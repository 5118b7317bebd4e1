package mocks

import (
	"context"

	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockStoryBootstrapper is a mock type for the StoryBootstrapper type
type MockStoryBootstrapper struct {
	mock.Mock
}

// Bootstrap provides a mock function with given fields: ctx, storyID, sessionID
func (_m *MockStoryBootstrapper) Bootstrap(ctx context.Context, storyID, sessionID string) (models.BootstrapReport, error) {
	ret := _m.Called(ctx, storyID, sessionID)

	var r0 models.BootstrapReport
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.BootstrapReport)
	}
	return r0, ret.Error(1)
}

// NewMockStoryBootstrapper creates a new instance of MockStoryBootstrapper. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockStoryBootstrapper(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoryBootstrapper {
	m := &MockStoryBootstrapper{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ interfaces.StoryBootstrapper = (*MockStoryBootstrapper)(nil)
