package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dailysender/internal/content"
	"dailysender/internal/shared"
)

type groupView struct {
	Index int `json:"index"`
	content.Group
}

type addGroupRequest struct {
	Message string          `json:"message" binding:"required"`
	Image   string          `json:"image"`
	Buttons json.RawMessage `json:"buttons"`
}

type updateGroupRequest struct {
	Message *string         `json:"message"`
	Image   *string         `json:"image"`
	Buttons json.RawMessage `json:"buttons"`
}

func (a *api) listGroups(c *gin.Context) {
	groups := a.Groups.List()
	out := make([]groupView, len(groups))
	for i, g := range groups {
		out[i] = groupView{Index: i, Group: g}
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) addGroup(c *gin.Context) {
	var req addGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}
	buttons, err := decodeButtons(req.Buttons)
	if err != nil {
		a.fail(c, err)
		return
	}
	var list []content.Button
	if buttons != nil {
		list = *buttons
	}
	g, err := a.Groups.Add(content.Group{Text: req.Message, ImageRef: req.Image, Buttons: list})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, gin.H{"group": g})
}

func (a *api) updateGroup(c *gin.Context) {
	idx, err := pathInt(c, "idx")
	if err != nil {
		a.fail(c, err)
		return
	}
	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}
	buttons, err := decodeButtons(req.Buttons)
	if err != nil {
		a.fail(c, err)
		return
	}
	g, err := a.Groups.Update(idx, content.Patch{Text: req.Message, ImageRef: req.Image, Buttons: buttons})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, gin.H{"group": g})
}

func (a *api) deleteGroup(c *gin.Context) {
	idx, err := pathInt(c, "idx")
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Groups.Delete(idx); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, nil)
}

// decodeButtons accepts a JSON array of buttons or a string in the admin form
// syntax. It returns nil when the field is absent or null.
func decodeButtons(raw json.RawMessage) (*[]content.Button, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		buttons := content.ParseButtons(text)
		return &buttons, nil
	}
	var buttons []content.Button
	if err := json.Unmarshal(raw, &buttons); err != nil {
		return nil, shared.MarkKind(fmt.Errorf("buttons: %w", err), shared.KindValidation)
	}
	return &buttons, nil
}

func pathInt(c *gin.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, shared.MarkKind(fmt.Errorf("%s: not a number", name), shared.KindValidation)
	}
	return n, nil
}
