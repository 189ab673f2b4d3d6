package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// SyncGroupsRequest identifies the gateway instance whose groups to mirror.
// Either field resolves the instance.
type SyncGroupsRequest struct {
	InstanceID   string `json:"instance_id"`
	InstanceName string `json:"instance_name"`
}

// SyncGroupsResponse reports a completed group sync.
type SyncGroupsResponse struct {
	OK         bool   `json:"ok" example:"true"`
	Total      int    `json:"total" example:"12"`
	InstanceID string `json:"instance_id"`
}

// ActivateGroupRequest flips a group's dispatch eligibility. Ativo defaults
// to true.
type ActivateGroupRequest struct {
	InstanceID string `json:"instance_id"`
	GroupID    string `json:"group_id"`
	Active     *bool  `json:"ativo"`
}

// GroupListResponse wraps the known groups matching a filter.
type GroupListResponse struct {
	OK     bool           `json:"ok" example:"true"`
	Groups []domain.Group `json:"grupos"`
}

// SyncInstancesResponse reports a completed instance sync.
type SyncInstancesResponse struct {
	OK    bool `json:"ok" example:"true"`
	Total int  `json:"total" example:"2"`
}

// InstanceListResponse wraps the known gateway instances.
type InstanceListResponse struct {
	OK        bool              `json:"ok" example:"true"`
	Instances []domain.Instance `json:"instancias"`
}

// SyncGroups godoc
// @ID          syncGroups
// @Summary     Mirror a gateway instance's groups
// @Description Fetches the instance's group list from the messaging gateway and upserts it locally. New groups start inactive; curator activation is never overwritten.
// @Tags        Groups
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SyncGroupsRequest  true  "Instance selector"
//
// @Success     200  {object}  handlers.SyncGroupsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Instance not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing instance reference"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /grupos/sync [post]
func (h *Handlers) SyncGroups(c *gin.Context) {
	var req SyncGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	total, instanceID, err := h.groupSvc.Sync(c.Request.Context(), req.InstanceID, req.InstanceName)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			fail(c, http.StatusUnprocessableEntity, ErrCodeInstanceRefRequired, "instance_id or instance_name is required")
		case errors.Is(err, services.ErrInstanceNotFound):
			fail(c, http.StatusNotFound, ErrCodeInstanceNotFound, "instance not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, SyncGroupsResponse{OK: true, Total: total, InstanceID: instanceID})
}

// ActivateGroup godoc
// @ID          activateGroup
// @Summary     Activate or deactivate a group for dispatch
// @Tags        Groups
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ActivateGroupRequest  true  "Group selector"
//
// @Success     200  {object}  handlers.AckResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing instance or group id"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /grupos/ativar [post]
func (h *Handlers) ActivateGroup(c *gin.Context) {
	var req ActivateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.groupSvc.SetActive(c.Request.Context(), req.InstanceID, req.GroupID, active); err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeInstanceGroupRequired, "instance_id and group_id are required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, AckResponse{OK: true})
}

// ListGroups godoc
// @ID          listGroups
// @Summary     List known groups
// @Tags        Groups
// @Produce     json
//
// @Param       instance_id  query  string  false  "Instance filter"
// @Param       ativo        query  bool    false  "Active filter"
//
// @Success     200  {object}  handlers.GroupListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /grupos [get]
func (h *Handlers) ListGroups(c *gin.Context) {
	groups, err := h.groupSvc.List(c.Request.Context(), services.GroupListFilter{
		InstanceID: c.Query("instance_id"),
		Active:     boolQuery(c, "ativo"),
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, GroupListResponse{OK: true, Groups: groups})
}

// SyncInstances godoc
// @ID          syncInstances
// @Summary     Mirror the gateway's instances
// @Tags        Instances
// @Produce     json
//
// @Success     200  {object}  handlers.SyncInstancesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /instancias/sync [post]
func (h *Handlers) SyncInstances(c *gin.Context) {
	total, err := h.instSvc.Sync(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SyncInstancesResponse{OK: true, Total: total})
}

// ListInstances godoc
// @ID          listInstances
// @Summary     List known gateway instances
// @Tags        Instances
// @Produce     json
//
// @Success     200  {object}  handlers.InstanceListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /instancias [get]
func (h *Handlers) ListInstances(c *gin.Context) {
	instances, err := h.instSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, InstanceListResponse{OK: true, Instances: instances})
}
