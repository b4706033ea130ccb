// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// handleAnalysis returns a handler that runs one named analysis operation
// through the adaptive selection manager. The request body is the operation's
// parameter object; the response envelope carries the result along with the
// serviceUsed and reasoning diagnostics.
func (s *Server) handleAnalysis(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := map[string]interface{}{}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&params); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"message": "invalid request body: " + err.Error(),
				})
				return
			}
		}

		result, err := s.manager.ExecuteOperation(c.Request.Context(), operation, params)
		if err != nil {
			log.WithField("request_id", c.GetString("request_id")).
				Errorf("Analysis operation %s failed: %v", operation, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"result":      result.Data,
				"serviceUsed": result.ServiceUsed,
				"reasoning":   result.Reasoning,
			},
		})
	}
}
