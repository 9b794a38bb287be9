package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID != 0 && c.Sender().ID != opts.AdminID {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// AllowlistOptions restricts handlers to an explicit set of user IDs.
// An empty allowlist admits everyone.
type AllowlistOptions struct {
	UserIDs  map[int64]struct{}
	OnReject tele.HandlerFunc
}

// AllowlistMiddleware admits only users present in the allowlist.
func AllowlistMiddleware(opts AllowlistOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if len(opts.UserIDs) == 0 {
				return next(c)
			}
			if _, ok := opts.UserIDs[c.Sender().ID]; !ok {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
