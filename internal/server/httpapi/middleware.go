package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/server/auth"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
)

// sessionMiddleware attaches a *sessions.Session to the request context,
// resolves Basic credentials as an app password when no session is active
// and writes the session cookie back when the session changed.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess := sessions.New(h.store, h.sessionID(r), h.sessionTTL)
		sw := &sessionWriter{ResponseWriter: w, h: h, r: r, sess: sess}
		r = r.WithContext(sessions.NewContext(ctx, sess))

		if token, secret, ok := r.BasicAuth(); ok {
			if _, err := h.apps.Authenticate(r.Context(), sess, token, secret); err != nil {
				h.writeError(sw, r, err)
				return
			}
		}

		next.ServeHTTP(sw, r)
		sw.commit()
	})
}

// sessionID extracts the session identifier from the signed cookie. A
// missing, forged or expired cookie yields an anonymous session.
func (h *Handler) sessionID(r *http.Request) string {
	c, err := r.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}

	id, err := auth.GetSessionIDFromToken(c.Value, h.secret)
	if err != nil {
		if !errors.Is(err, common.ErrTokenExpired) {
			h.log.Warn(r.Context(), "rejected session cookie", "error", err)
		}
		return ""
	}
	return id
}

// sessionWriter sets the session cookie right before the response header
// goes out.
type sessionWriter struct {
	http.ResponseWriter
	h    *Handler
	r    *http.Request
	sess *sessions.Session

	committed bool
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	if !w.sess.Changed() {
		return
	}

	cookie := &http.Cookie{
		Name:     common.SessionCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   w.h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	if w.sess.ID() == "" {
		cookie.MaxAge = -1
	} else {
		value, err := auth.GenerateToken(w.sess.ID(), w.h.secret, w.h.sessionTTL)
		if err != nil {
			w.h.log.Error(w.r.Context(), "signing session cookie", "error", err)
			return
		}
		cookie.Value = value
		cookie.MaxAge = int(w.h.sessionTTL.Seconds())
	}

	http.SetCookie(w.ResponseWriter, cookie)
}
