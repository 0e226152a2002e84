package views

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin/render"
)

// HTMLTemplRenderer implements gin's render.HTMLRender for templ components.
// The template name is ignored, the data must be a templ.Component.
type HTMLTemplRenderer struct{}

func (r *HTMLTemplRenderer) Instance(name string, d any) render.Render {
	component, ok := d.(templ.Component)
	if !ok {
		component = errorComponent(fmt.Errorf("view %q: %T is not a templ.Component", name, d))
	}
	return &Renderer{Ctx: context.Background(), Component: component}
}

// Renderer for templ.Component
type Renderer struct {
	Ctx       context.Context
	Component templ.Component
}

func (r Renderer) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return r.Component.Render(r.Ctx, w)
}

func (r Renderer) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

func errorComponent(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return err
	})
}
