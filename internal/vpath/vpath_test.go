package vpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbfs/dbfs/pkg/types"
)

func TestBacking(t *testing.T) {
	tr := NewTranslator("/var/dump")

	assert.Equal(t, "/var/dump", tr.Backing("/"))
	assert.Equal(t, "/var/dump/prod", tr.Backing("/prod"))
	assert.Equal(t, "/var/dump/prod/tables", tr.Backing("/prod/tables"))
	assert.Equal(t, "/var/dump/prod/customQueries/top.sql", tr.Backing("/prod/customQueries/top.sql"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want types.PathClass
	}{
		{"/", types.ClassPlain},
		{"/prod", types.ClassPlain},
		{"/prod/tables", types.ClassGeneratedView},
		{"/prod/tables.json", types.ClassGeneratedView},
		{"/prod/customQueries", types.ClassCustomQueryDir},
		{"/prod/customQueries/top.sql", types.ClassCustomQueryFile},
		{"/prod/customQueries/sub/deep", types.ClassCustomQueryFile},
		{"/prod/other/deep", types.ClassPlain},
		{"/customQueries", types.ClassPlain},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestViewTarget(t *testing.T) {
	server, object, format, err := ViewTarget("/prod/tables")
	require.NoError(t, err)
	assert.Equal(t, "prod", server)
	assert.Equal(t, "tables", object)
	assert.Equal(t, types.FormatTSV, format)

	server, object, format, err = ViewTarget("/prod/tables.json")
	require.NoError(t, err)
	assert.Equal(t, "prod", server)
	assert.Equal(t, "tables", object)
	assert.Equal(t, types.FormatJSON, format)
}

func TestViewTargetRejectsMalformed(t *testing.T) {
	for _, path := range []string{"/", "/prod", "/prod/a/b"} {
		_, _, _, err := ViewTarget(path)
		assert.Error(t, err, "path %q", path)
	}
}

func TestCustomQueryTarget(t *testing.T) {
	server, file, err := CustomQueryTarget("/prod/customQueries/top.sql")
	require.NoError(t, err)
	assert.Equal(t, "prod", server)
	assert.Equal(t, "top.sql", file)

	_, _, err = CustomQueryTarget("/prod/tables")
	assert.Error(t, err)
}

func TestCustomQueryDirServer(t *testing.T) {
	server, err := CustomQueryDirServer("/prod/customQueries")
	require.NoError(t, err)
	assert.Equal(t, "prod", server)

	_, err = CustomQueryDirServer("/prod")
	assert.Error(t, err)
}
