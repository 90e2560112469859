package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/services"
	"github.com/vrwarp/versicle/internal/tasks"
)

// ReprocessEnqueuer schedules background reprocessing. Satisfied by
// tasks.Client.
type ReprocessEnqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

type BooksController struct {
	library  *services.LibraryService
	ingest   *services.IngestService
	enqueuer ReprocessEnqueuer
}

func NewBooksController(library *services.LibraryService, ingest *services.IngestService, enqueuer ReprocessEnqueuer) *BooksController {
	return &BooksController{
		library:  library,
		ingest:   ingest,
		enqueuer: enqueuer,
	}
}

func (controller *BooksController) GetBook(c *gin.Context) {
	detail, err := controller.library.BookDetail(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, detail)
}

func (controller *BooksController) GetResume(c *gin.Context) {
	info, err := controller.library.Resume(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, info)
}

func (controller *BooksController) GetHistory(c *gin.Context) {
	bookID := c.Param("id")
	entry, err := controller.library.History(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		entry = &entities.HistoryEntry{BookID: bookID, ReadRanges: []entities.ReadRange{}, Sessions: []entities.Session{}}
	}
	c.IndentedJSON(http.StatusOK, entry)
}

// Import accepts one or more files in a multipart form ("files" field) and
// ingests each independently. A bad file never aborts the batch.
func (controller *BooksController) Import(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	var inputs []services.IngestInput
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			inputs = append(inputs, services.IngestInput{Filename: fh.Filename})
			continue
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "failed to read " + fh.Filename})
			return
		}
		inputs = append(inputs, services.IngestInput{Filename: fh.Filename, Content: content})
	}

	results := controller.ingest.IngestBatch(c.Request.Context(), inputs)

	imported := 0
	for _, r := range results {
		if r.Error == "" {
			imported++
		}
	}

	status := http.StatusCreated
	if imported == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.IndentedJSON(status, gin.H{
		"imported": imported,
		"failed":   len(results) - imported,
		"results":  results,
	})
}

func (controller *BooksController) Reprocess(c *gin.Context) {
	if controller.enqueuer == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"error": "task queue is disabled"})
		return
	}

	bookID := c.Param("id")
	if _, err := controller.library.BookDetail(bookID); err != nil {
		respondError(c, err)
		return
	}

	ids, err := controller.enqueuer.Add(tasks.ReprocessBookTask{BookID: bookID}).Save()
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusAccepted, gin.H{"task_ids": ids})
}

func (controller *BooksController) Offload(c *gin.Context) {
	if err := controller.library.Offload(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"offloaded": true})
}

// Restore accepts the book binary as the request body and verifies it
// against the stored fingerprint before writing anything back.
func (controller *BooksController) Restore(c *gin.Context) {
	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(content) == 0 {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	if err := controller.library.Restore(c.Param("id"), content); err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"restored": true})
}

type updateBookRequest struct {
	Title  *string   `json:"title"`
	Author *string   `json:"author"`
	Tags   *[]string `json:"tags"`
}

func (controller *BooksController) UpdateBook(c *gin.Context) {
	bookID := c.Param("id")

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	detail, err := controller.library.BookDetail(bookID)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Title != nil || req.Author != nil {
		title := detail.Inventory.TitleOverride
		author := detail.Inventory.AuthorOverride
		if req.Title != nil {
			title = *req.Title
		}
		if req.Author != nil {
			author = *req.Author
		}
		if err := controller.library.Rename(bookID, title, author); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.Tags != nil {
		if err := controller.library.SetTags(bookID, *req.Tags); err != nil {
			respondError(c, err)
			return
		}
	}

	detail, err = controller.library.BookDetail(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, detail)
}

func (controller *BooksController) DeleteBook(c *gin.Context) {
	if err := controller.library.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
