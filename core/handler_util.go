package core

import "github.com/gin-gonic/gin"

// respondError renders the generic error page. message is shown to the user as is,
// so it must never carry internal detail.
func respondError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.tmpl", gin.H{"Status": status, "Message": message})
}
