package server

import (
	"net/http"
	"net/url"

	"github.com/girderhq/girder/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

// handleOAuthServerMetadata handles the OAuth server metadata endpoint
func (s *Server) handleOAuthServerMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, s.auth.ServerMetadata(c.Request))
}

// handleOAuthAuthorize handles the OAuth authorization endpoint
func (s *Server) handleOAuthAuthorize(c *gin.Context) {
	resp, err := s.auth.Authorize(c.Request.Context(), c.Request)
	if err != nil {
		s.sendOAuthError(c, err)
		return
	}

	// Redirect to the client's redirect URI with the authorization code
	u, err := url.Parse(c.Query("redirect_uri"))
	if err != nil {
		s.sendOAuthError(c, errorx.ErrInvalidRedirectURI)
		return
	}

	q := u.Query()
	q.Set("code", resp.Code)
	if resp.State != "" {
		q.Set("state", resp.State)
	}
	u.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, u.String())
}

// handleOAuthToken handles the OAuth token endpoint
func (s *Server) handleOAuthToken(c *gin.Context) {
	resp, err := s.auth.Token(c.Request.Context(), c.Request)
	if err != nil {
		s.sendOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleOAuthRegister handles the OAuth client registration endpoint
func (s *Server) handleOAuthRegister(c *gin.Context) {
	resp, err := s.auth.Register(c.Request.Context(), c.Request)
	if err != nil {
		s.sendOAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleOAuthRevoke handles the OAuth token revocation endpoint
func (s *Server) handleOAuthRevoke(c *gin.Context) {
	if err := s.auth.Revoke(c.Request.Context(), c.Request); err != nil {
		s.sendOAuthError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// sendOAuthError sends an OAuth error response
func (s *Server) sendOAuthError(c *gin.Context, err error) {
	oauthErr := errorx.ConvertToOAuth2Error(err)
	c.JSON(oauthErr.HTTPStatus, gin.H{
		"error":             oauthErr.ErrorType,
		"error_description": oauthErr.ErrorDescription,
		"error_uri":         oauthErr.ErrorURI,
		"error_code":        oauthErr.ErrorCode,
	})
}
