package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/services"
)

type AnnotationsController struct {
	library *services.LibraryService
}

func NewAnnotationsController(library *services.LibraryService) *AnnotationsController {
	return &AnnotationsController{library: library}
}

func (controller *AnnotationsController) GetAnnotations(c *gin.Context) {
	annotations, err := controller.library.Annotations(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if annotations == nil {
		annotations = []entities.Annotation{}
	}
	c.IndentedJSON(http.StatusOK, gin.H{"annotations": annotations, "count": len(annotations)})
}

type createAnnotationRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
	Note  string `json:"note"`
	Color string `json:"color"`
}

func (controller *AnnotationsController) CreateAnnotation(c *gin.Context) {
	var req createAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	created, err := controller.library.AddAnnotation(entities.Annotation{
		BookID: c.Param("id"),
		Start:  req.Start,
		End:    req.End,
		Text:   req.Text,
		Note:   req.Note,
		Color:  req.Color,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, created)
}

func (controller *AnnotationsController) DeleteAnnotation(c *gin.Context) {
	if err := controller.library.DeleteAnnotation(c.Param("annotationId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
