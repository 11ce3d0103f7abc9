package request

import (
	"context"
	"errors"
	"net/http"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/handler/http/respond"
)

// Getter is the read side of repository.MediaRequestRepository.
type Getter interface {
	Get(ctx context.Context, id string) (*entity.MediaRequest, error)
}

type GetHandler struct{ Repo Getter }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respond.SafeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}

	req, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if req == nil {
		respond.SafeError(w, http.StatusNotFound, errors.New("media request not found"))
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(req))
}
