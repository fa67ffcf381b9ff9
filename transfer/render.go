package transfer

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/stealthmix/transfercore/common"
)

// render and renderError are the gin response helpers this package
// uses in place of provide-go's api/common.Render/RenderError -- the
// teacher's handlers (prover/handlers.go) lean on a shared rendering
// package this module doesn't carry, so the mapping from a
// common.Error's Category to an HTTP status lives here instead.
func render(c *gin.Context, status int, obj interface{}) {
	c.JSON(status, obj)
}

func renderError(c *gin.Context, err error) {
	var coreErr *common.Error
	if !errors.As(err, &coreErr) {
		render(c, 500, gin.H{"errors": []gin.H{{"message": err.Error()}}})
		return
	}

	status := 422
	switch coreErr.Category {
	case common.CategoryAuthority:
		status = 403
	case common.CategoryState:
		status = 409
	case common.CategoryValidation, common.CategoryResource:
		status = 400
	case common.CategoryProof, common.CategoryPDA, common.CategoryAccounting:
		status = 422
	}

	render(c, status, gin.H{
		"errors": []gin.H{{
			"code":    coreErr.Code,
			"label":   coreErr.Label,
			"message": coreErr.Message,
		}},
	})
}
