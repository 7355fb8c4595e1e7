//go:build linux

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCgroupLimit(t *testing.T) {
	assert.Zero(t, parseCgroupLimitMB("max\n"))
	assert.Zero(t, parseCgroupLimitMB(""))
	assert.Zero(t, parseCgroupLimitMB("garbage"))
	assert.Equal(t, 256, parseCgroupLimitMB("268435456\n"))
}
