package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
)

type loginResponse struct {
	Token string         `mapstructure:"token"`
	Role  string         `mapstructure:"role"`
	Rest  map[string]any `mapstructure:",remain"`
}

// decodeLogin builds a Session from a login response. Besides token and
// role every other field is kept as identity. Some backends nest the user
// under "user"; the role and id are looked up there too, and finally in the
// token's own claims.
func decodeLogin(raw map[string]any) (*model.Session, error) {
	const op = "session.login"

	var resp loginResponse
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &resp,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &apperr.Error{Kind: apperr.KindAuth, Op: op, Message: "malformed login response", Err: err}
	}
	if resp.Token == "" {
		return nil, apperr.Auth(op, "login response carries no token")
	}

	s := &model.Session{
		Token:    resp.Token,
		Role:     resp.Role,
		Identity: resp.Rest,
	}

	user := cast.ToStringMap(resp.Rest["user"])
	if s.Role == "" {
		s.Role = cast.ToString(user["role"])
	}
	s.UserID = firstString(resp.Rest["_id"], resp.Rest["id"], user["_id"], user["id"])

	if claims := unverifiedClaims(resp.Token); claims != nil {
		if s.UserID == "" {
			s.UserID = firstString(claims["userId"], claims["id"], claims["sub"])
		}
		if s.Role == "" {
			s.Role = cast.ToString(claims["role"])
		}
		if exp, err := cast.ToInt64E(claims["exp"]); err == nil && exp > 0 {
			t := time.Unix(exp, 0)
			s.ExpiresAt = &t
		}
	}
	return s, nil
}

// unverifiedClaims reads JWT claims without checking the signature; the
// client never holds the signing key. Opaque tokens yield nil.
func unverifiedClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func firstString(vals ...any) string {
	for _, v := range vals {
		if s := cast.ToString(v); s != "" {
			return s
		}
	}
	return ""
}
