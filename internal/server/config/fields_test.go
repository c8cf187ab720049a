package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldIDs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		base    FieldIDs
		want    FieldIDs
		wantErr bool
	}{
		{
			name: "all fields",
			in:   "id=1,active=2,username=3,email=4,token=5,created_at=6,expires_at=7,is_permanent=8",
			want: validFields(),
		},
		{
			name: "overlay keeps base",
			in:   " token = 50 ,",
			base: validFields(),
			want: func() FieldIDs { f := validFields(); f.Token = 50; return f }(),
		},
		{name: "unknown name", in: "colour=1", wantErr: true},
		{name: "not a pair", in: "token", wantErr: true},
		{name: "not a number", in: "token=abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFieldIDs(tt.in, tt.base)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.base, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldIDs_StringRoundTrip(t *testing.T) {
	f := validFields()
	got, err := ParseFieldIDs(f.String(), FieldIDs{})
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
