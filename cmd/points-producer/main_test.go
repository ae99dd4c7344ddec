package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-market/internal/domain"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadImports(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "single import",
			content: `{"sport":"MotoGP","race_id":3,"points":[{"rider_id":1,"main":"25","sprint":12}]}`,
			want:    1,
		},
		{
			name: "list of imports",
			content: `[
				{"sport":"f1","race_id":1,"points":[{"rider_id":7,"main":18}]},
				{"sport":"f1","race_id":2,"points":[{"rider_id":7,"main":25}]}
			]`,
			want: 2,
		},
		{
			name:    "unknown sport",
			content: `{"sport":"nascar","race_id":3,"points":[{"rider_id":1,"main":25}]}`,
			wantErr: true,
		},
		{
			name:    "missing rows",
			content: `{"sport":"f1","race_id":3,"points":[]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: `race 3: rossi 25`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imports, err := loadImports(writeFile(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, imports, tt.want)
		})
	}
}

func TestLoadImports_NormalizesSport(t *testing.T) {
	imports, err := loadImports(writeFile(t, `{"sport":" MotoGP ","race_id":3,"points":[{"rider_id":1,"main":"25"}]}`))
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, domain.SportMotoGP, imports[0].Sport)
	assert.Equal(t, "motogp:3", messageKey(imports[0]))
	assert.Equal(t, domain.PointsValue(25), imports[0].Points[0].Main)
}
