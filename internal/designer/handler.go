package designer

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/respond"
)

// Handler exposes the Service over HTTP. Routes must sit behind
// middleware.RequireAuth.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes registers the designer endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)
		r.Get("/{id}", h.GetProject)
		r.Put("/{id}", h.UpdateProject)
		r.Delete("/{id}", h.DeleteProject)
	})

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", h.ListFlows)
		r.Post("/", h.CreateFlow)
		r.Get("/{id}", h.GetFlow)
		r.Put("/{id}", h.UpdateFlow)
		r.Delete("/{id}", h.DeleteFlow)
		r.Get("/{id}/graph", h.Graph)
		r.Get("/{id}/sequence", h.Sequence)
		r.Post("/{id}/connections", h.Connect)
		r.Post("/{id}/nodes", h.AddNode)
		r.Get("/{id}/export", h.Export)
		r.Get("/{id}/revisions/{version}", h.Revision)
	})

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/{id}", h.GetNode)
		r.Delete("/{id}", h.DeleteNode)
		r.Post("/{id}/move", h.MoveNode)
	})

	r.Route("/tokens", func(r chi.Router) {
		r.Get("/", h.ListTokens)
		r.Post("/", h.CreateToken)
		r.Get("/{id}", h.GetToken)
		r.Put("/{id}", h.UpdateToken)
		r.Delete("/{id}", h.DeleteToken)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.logger, err)
}

// Projects

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	project, err := h.svc.CreateProject(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{
		"message": "Project created successfully",
		"project": project,
	})
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.svc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProjectRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	project, err := h.svc.UpdateProject(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Project deleted successfully")
}

// Flows

func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.svc.ListFlows(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"flows": flows})
}

func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFlowRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	flow, err := h.svc.CreateFlow(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{
		"message": "Flow created successfully",
		"flow":    flow,
	})
}

func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.svc.GetFlow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"flow": flow})
}

func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateFlowRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	flow, err := h.svc.UpdateFlow(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"flow": flow})
}

func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFlow(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Flow deleted successfully")
}

// Export downloads the current flow document as a JSON file.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	flow, err := h.svc.GetFlow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=flow-%s-v%d.json", flow.ID, flow.Version))
	respond.JSON(w, http.StatusOK, flow)
}

func (h *Handler) Revision(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		h.fail(w, r, apperr.Validation("version must be a positive integer"))
		return
	}
	data, contentType, err := h.svc.Revision(r.Context(), chi.URLParam(r, "id"), version)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// Editor

func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.svc.Graph(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, graph)
}

func (h *Handler) Sequence(w http.ResponseWriter, r *http.Request) {
	seq, err := h.svc.Sequence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, seq)
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	flow, err := h.svc.Connect(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"flow": flow})
}

func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req models.AddNodeRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	flow, node, err := h.svc.AddNode(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"flow": flow, "node": node})
}

func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"node": node})
}

func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req models.MoveNodeRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	flow, err := h.svc.MoveNode(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"flow": flow})
}

func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	flow, err := h.svc.DeleteNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"flow": flow})
}

// Tokens

func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	if projectID := r.URL.Query().Get("projectId"); projectID != "" {
		tokens, err := h.svc.ProjectTokens(r.Context(), projectID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]any{"tokens": tokens})
		return
	}
	tokens, err := h.svc.AllTokens(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTokenRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := h.svc.CreateToken(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{
		"message": "Token created successfully",
		"token":   token,
	})
}

func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.svc.GetToken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTokenRequest
	if err := respond.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := h.svc.UpdateToken(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteToken(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Token deleted successfully")
}
