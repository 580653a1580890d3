package auth

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"

	"github.com/joestump/joe-marks/internal/db"
)

// SessionUserIDKey holds the signed-in user's id in the session.
const SessionUserIDKey = "user_id"

// NewSessionManager creates an scs session manager persisted in the
// application database, in the sessions table matching driver.
func NewSessionManager(conn *sqlx.DB, driver string, lifetime time.Duration, secure bool) *scs.SessionManager {
	sm := scs.New()
	switch driver {
	case db.DriverMySQL:
		sm.Store = mysqlstore.New(conn.DB)
	case db.DriverPostgres:
		sm.Store = postgresstore.New(conn.DB)
	default:
		sm.Store = sqlite3store.New(conn.DB)
	}
	sm.Lifetime = lifetime
	sm.Cookie.Name = "joe_marks_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = secure
	sm.Cookie.SameSite = http.SameSiteLaxMode
	return sm
}
