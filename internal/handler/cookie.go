package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieConfig describes an auth cookie.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (cc CookieConfig) set(c *gin.Context, value string) {
	cc.write(c, value, int(cc.MaxAge.Seconds()))
}

func (cc CookieConfig) clear(c *gin.Context) {
	cc.write(c, "", -1)
}

func (cc CookieConfig) write(c *gin.Context, value string, maxAge int) {
	// cross-site frontends need SameSite=None, which browsers only accept on secure cookies
	if cc.Secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(cc.Name, value, maxAge, "/", "", cc.Secure, true)
}
