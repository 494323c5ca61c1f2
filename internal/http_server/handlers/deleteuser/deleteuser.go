package deleteuser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/account"
	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/middleware/authn"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AccountDeleter interface {
	DeleteAccount(ctx context.Context, callerID, targetID int64) error
}

// New deletes the caller's own account. An id that is not a number can never be
// the caller's, so it gets 403 as well.
func New(log *slog.Logger, deleter AccountDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.deleteuser.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		callerID, ok := authn.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authentication credentials were not provided"))

			return
		}

		targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, resp.Error(account.ErrForbidden.Error()))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := deleter.DeleteAccount(ctx, callerID, targetID); err != nil {
			switch {
			case errors.Is(err, account.ErrForbidden):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error(account.ErrForbidden.Error()))
			case errors.Is(err, account.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))
			default:
				log.Error("failed to delete user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("user deleted", slog.Int64("uid", targetID))

		render.NoContent(w, r)
	}
}
