// Package mocks provides test doubles for the hubspot client.
package mocks

import (
	"context"

	hubspot "github.com/sells-group/dealsync/pkg/hubspot"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetObject provides a mock function with given fields: ctx, objectType, id, properties
func (_m *MockClient) GetObject(ctx context.Context, objectType string, id string, properties []string) (*hubspot.Object, error) {
	ret := _m.Called(ctx, objectType, id, properties)

	if len(ret) == 0 {
		panic("no return value specified for GetObject")
	}

	var r0 *hubspot.Object
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, []string) (*hubspot.Object, error)); ok {
		return rf(ctx, objectType, id, properties)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, []string) *hubspot.Object); ok {
		r0 = rf(ctx, objectType, id, properties)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*hubspot.Object)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, []string) error); ok {
		r1 = rf(ctx, objectType, id, properties)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateObject provides a mock function with given fields: ctx, objectType, in
func (_m *MockClient) CreateObject(ctx context.Context, objectType string, in hubspot.CreateInput) (*hubspot.Object, error) {
	ret := _m.Called(ctx, objectType, in)

	if len(ret) == 0 {
		panic("no return value specified for CreateObject")
	}

	var r0 *hubspot.Object
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, hubspot.CreateInput) (*hubspot.Object, error)); ok {
		return rf(ctx, objectType, in)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, hubspot.CreateInput) *hubspot.Object); ok {
		r0 = rf(ctx, objectType, in)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*hubspot.Object)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, hubspot.CreateInput) error); ok {
		r1 = rf(ctx, objectType, in)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateObject provides a mock function with given fields: ctx, objectType, id, properties
func (_m *MockClient) UpdateObject(ctx context.Context, objectType string, id string, properties map[string]string) (*hubspot.Object, error) {
	ret := _m.Called(ctx, objectType, id, properties)

	if len(ret) == 0 {
		panic("no return value specified for UpdateObject")
	}

	var r0 *hubspot.Object
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, map[string]string) (*hubspot.Object, error)); ok {
		return rf(ctx, objectType, id, properties)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, map[string]string) *hubspot.Object); ok {
		r0 = rf(ctx, objectType, id, properties)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*hubspot.Object)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, map[string]string) error); ok {
		r1 = rf(ctx, objectType, id, properties)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DeleteObject provides a mock function with given fields: ctx, objectType, id
func (_m *MockClient) DeleteObject(ctx context.Context, objectType string, id string) error {
	ret := _m.Called(ctx, objectType, id)

	if len(ret) == 0 {
		panic("no return value specified for DeleteObject")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, objectType, id)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// BatchReadObjects provides a mock function with given fields: ctx, objectType, ids, properties
func (_m *MockClient) BatchReadObjects(ctx context.Context, objectType string, ids []string, properties []string) ([]hubspot.Object, error) {
	ret := _m.Called(ctx, objectType, ids, properties)

	if len(ret) == 0 {
		panic("no return value specified for BatchReadObjects")
	}

	var r0 []hubspot.Object
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, []string, []string) ([]hubspot.Object, error)); ok {
		return rf(ctx, objectType, ids, properties)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, []string, []string) []hubspot.Object); ok {
		r0 = rf(ctx, objectType, ids, properties)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]hubspot.Object)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, []string, []string) error); ok {
		r1 = rf(ctx, objectType, ids, properties)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SearchObjects provides a mock function with given fields: ctx, objectType, req
func (_m *MockClient) SearchObjects(ctx context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
	ret := _m.Called(ctx, objectType, req)

	if len(ret) == 0 {
		panic("no return value specified for SearchObjects")
	}

	var r0 *hubspot.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, hubspot.SearchRequest) (*hubspot.SearchResponse, error)); ok {
		return rf(ctx, objectType, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, hubspot.SearchRequest) *hubspot.SearchResponse); ok {
		r0 = rf(ctx, objectType, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*hubspot.SearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, hubspot.SearchRequest) error); ok {
		r1 = rf(ctx, objectType, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListAssociations provides a mock function with given fields: ctx, fromType, fromID, toType
func (_m *MockClient) ListAssociations(ctx context.Context, fromType string, fromID string, toType string) ([]string, error) {
	ret := _m.Called(ctx, fromType, fromID, toType)

	if len(ret) == 0 {
		panic("no return value specified for ListAssociations")
	}

	var r0 []string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) ([]string, error)); ok {
		return rf(ctx, fromType, fromID, toType)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) []string); ok {
		r0 = rf(ctx, fromType, fromID, toType)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]string)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, string) error); ok {
		r1 = rf(ctx, fromType, fromID, toType)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Associate provides a mock function with given fields: ctx, fromType, fromID, toType, toID, typeID
func (_m *MockClient) Associate(ctx context.Context, fromType string, fromID string, toType string, toID string, typeID int) error {
	ret := _m.Called(ctx, fromType, fromID, toType, toID, typeID)

	if len(ret) == 0 {
		panic("no return value specified for Associate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, string, int) error); ok {
		r0 = rf(ctx, fromType, fromID, toType, toID, typeID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetProperties provides a mock function with given fields: ctx, objectType
func (_m *MockClient) GetProperties(ctx context.Context, objectType string) ([]hubspot.Property, error) {
	ret := _m.Called(ctx, objectType)

	if len(ret) == 0 {
		panic("no return value specified for GetProperties")
	}

	var r0 []hubspot.Property
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]hubspot.Property, error)); ok {
		return rf(ctx, objectType)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []hubspot.Property); ok {
		r0 = rf(ctx, objectType)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]hubspot.Property)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, objectType)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetPipelines provides a mock function with given fields: ctx, objectType
func (_m *MockClient) GetPipelines(ctx context.Context, objectType string) ([]hubspot.Pipeline, error) {
	ret := _m.Called(ctx, objectType)

	if len(ret) == 0 {
		panic("no return value specified for GetPipelines")
	}

	var r0 []hubspot.Pipeline
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]hubspot.Pipeline, error)); ok {
		return rf(ctx, objectType)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []hubspot.Pipeline); ok {
		r0 = rf(ctx, objectType)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]hubspot.Pipeline)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, objectType)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
