package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-dispatch/internal/domain/geo"
	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/jwt"
)

func TestGenerateUserTokenValidatesAgainstGatekeeper(t *testing.T) {
	token, claims, err := GenerateUserToken("s3cret", time.Hour, "ord-1001", " Customer ", "Grace")
	require.NoError(t, err)
	assert.Equal(t, "ord-1001", claims.Subject)
	assert.Equal(t, user.RoleCustomer, claims.Role)

	sess, err := jwt.NewGatekeeper(jwt.NewManager("s3cret", time.Hour)).Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "ord-1001", sess.SubjectID)
	assert.Equal(t, user.RoleCustomer, sess.Role)
}

func TestGenerateUserTokenRejectsBadInput(t *testing.T) {
	_, _, err := GenerateUserToken("s3cret", time.Hour, "D1", "passenger", "")
	assert.ErrorIs(t, err, user.ErrInvalidRole)

	_, _, err = GenerateUserToken("s3cret", time.Hour, " ", "driver", "")
	assert.ErrorIs(t, err, jwt.ErrSubjectRequired)
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint(" 52.52, 13.405 ")
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: 52.52, Lng: 13.405}, p)

	for _, bad := range []string{"52.52", "x,1", "1,y", "91,0"} {
		_, err := ParsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestAliasesCoverEveryMode(t *testing.T) {
	for _, mode := range []string{ModeDispatch, ModeAgent, ModeToken} {
		assert.NotEmpty(t, Aliases[mode], mode)
	}
}
