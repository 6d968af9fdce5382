package restapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIGalleryResponse defines the response of the gallery query endpoint.
type APIGalleryResponse struct {
	Data          entity.Gallery      `json:"data"`
	ChainErrors   []entity.ChainError `json:"chain_errors,omitempty"`
	StatusMessage string              `json:"status_message"`
}

// APIChainsResponse defines the response of the chain listing endpoint.
type APIChainsResponse struct {
	Data []entity.ChainEndpoint `json:"data"`
}

// APIStateResponse wraps a gallery state snapshot.
type APIStateResponse struct {
	Data entity.GalleryState `json:"data"`
}

// APIErrorResponse is returned for every failed request.
type APIErrorResponse struct {
	Error         string `json:"error"`
	StatusMessage string `json:"status_message"`
}

// SetAddressRequest is the body of PUT /gallery/address.
type SetAddressRequest struct {
	Address string `json:"address"`
}

// GalleryHandler handles the gallery HTTP endpoints.
type GalleryHandler struct {
	galleryService port.GalleryService
	logger         port.Logger
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(gs port.GalleryService, l port.Logger) *GalleryHandler {
	return &GalleryHandler{galleryService: gs, logger: l}
}

// GetChainsHandler lists the chains galleries are built from.
func (h *GalleryHandler) GetChainsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, APIChainsResponse{Data: h.galleryService.Chains()})
}

// GetAddressNFTsHandler resolves the gallery of an address synchronously.
func (h *GalleryHandler) GetAddressNFTsHandler(c *gin.Context) {
	address := c.Param("address")

	ownedOnly := false
	if raw := c.Query("ownedOnly"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, APIErrorResponse{
				Error:         "ownedOnly must be a boolean",
				StatusMessage: "Invalid query parameter.",
			})
			return
		}
		ownedOnly = parsed
	}

	gallery, err := h.galleryService.Query(c.Request.Context(), address)
	if err != nil {
		status, message := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Gallery query failed", "address", address, "error", err)
		}
		c.JSON(status, APIErrorResponse{Error: err.Error(), StatusMessage: message})
		return
	}

	result := *gallery
	if ownedOnly {
		result = result.OwnedOnly()
	}

	response := APIGalleryResponse{Data: result, ChainErrors: result.ChainErrors}
	switch {
	case len(result.ChainErrors) > 0:
		response.StatusMessage = "Gallery retrieved. Some chains could not be queried."
	case len(result.Tokens) == 0:
		response.StatusMessage = "No NFTs found for this address."
	default:
		response.StatusMessage = "Gallery retrieved successfully."
	}
	c.JSON(http.StatusOK, response)
}

// SetGalleryAddressHandler switches the interactive gallery to a new address.
func (h *GalleryHandler) SetGalleryAddressHandler(c *gin.Context) {
	var req SetAddressRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIErrorResponse{
			Error:         err.Error(),
			StatusMessage: "Request body must be a JSON object with an address field.",
		})
		return
	}

	state := h.galleryService.SetAddress(req.Address)
	if state.Error != "" && !state.Loading {
		c.JSON(http.StatusBadRequest, APIStateResponse{Data: state})
		return
	}
	c.JSON(http.StatusAccepted, APIStateResponse{Data: state})
}

// GetGalleryStateHandler returns the current interactive gallery snapshot.
func (h *GalleryHandler) GetGalleryStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, APIStateResponse{Data: h.galleryService.State()})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid address."
	case errors.Is(err, entity.ErrExternalService):
		return http.StatusBadGateway, "Explorer query failed."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Gallery query timed out."
	default:
		return http.StatusInternalServerError, "Gallery query failed."
	}
}
