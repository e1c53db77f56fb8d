package service

import (
	"testing"

	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/stretchr/testify/assert"
)

func TestDefaultStatusFilter(t *testing.T) {
	statuses := []database.Status{
		{StatusCode: enum.StatusNew},
		{StatusCode: enum.StatusOrdered},
		{StatusCode: enum.StatusReceived},
		{StatusCode: enum.StatusDelivering},
		{StatusCode: enum.StatusDone},
		{StatusCode: enum.StatusCancelled},
	}

	got := DefaultStatusFilter(statuses)
	assert.Equal(t, []string{
		enum.StatusNew, enum.StatusOrdered, enum.StatusReceived, enum.StatusDelivering,
	}, got)
}

func TestDefaultStatusFilter_CustomStatusesIncluded(t *testing.T) {
	statuses := []database.Status{
		{StatusCode: enum.StatusNew},
		{StatusCode: "ON_HOLD"},
		{StatusCode: enum.StatusDone},
	}

	got := DefaultStatusFilter(statuses)
	assert.Equal(t, []string{enum.StatusNew, "ON_HOLD"}, got)
}

func TestDefaultStatusFilter_Empty(t *testing.T) {
	assert.Empty(t, DefaultStatusFilter(nil))
}
