package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vttcore/internal/pkg/errs"
)

type presignInput struct {
	FileName string `json:"fileName"`
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    int
	}{
		{"valid", "application/json", `{"fileName":"map.png"}`, 0},
		{"wrong content type", "text/plain", `{"fileName":"map.png"}`, errs.ErrUnsupportedMediaType},
		{"syntax error", "application/json", `{"fileName":`, errs.ErrInvalidJSONFormat},
		{"unknown field", "application/json", `{"fileName":"a","x":1}`, errs.ErrInvalidJSONFormat},
		{"trailing object", "application/json", `{"fileName":"a"}{"fileName":"b"}`, errs.ErrExtraContentInBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)

			var in presignInput
			customErr := BindJSON(httptest.NewRecorder(), r, &in)

			if tt.wantCode == 0 {
				require.Nil(t, customErr)
				require.Equal(t, "map.png", in.FileName)
				return
			}
			require.NotNil(t, customErr)
			require.Equal(t, tt.wantCode, customErr.Code)
		})
	}
}
