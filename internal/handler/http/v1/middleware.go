package v1

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSMiddleware разрешает браузерным панелям обращаться к API.
// Пустой список источников разрешает любой источник.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// SentryMiddleware передает паники и ошибки запросов в Sentry
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorReporter отправляет в Sentry ошибки, записанные обработчиками через c.Error
func ErrorReporter(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		hub := sentrygin.GetHubFromContext(c)
		for _, ginErr := range c.Errors {
			log.WithFields(logrus.Fields{
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
			}).WithError(ginErr.Err).Debug("Request finished with error")
			if hub != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("route", c.FullPath())
					hub.CaptureException(ginErr.Err)
				})
			}
		}
	}
}
