package iiif

import (
	"fmt"
	"math"

	"github.com/tessellahq/tessella/pkg/models"
)

// PresentationContext is the JSON-LD context for Presentation API v3
// manifests; it also appears in the profile parameter of the response
// content type.
const PresentationContext = "http://iiif.io/api/presentation/3/context.json"

// ManifestContentType is the content type manifests are served with.
const ManifestContentType = `application/ld+json;profile="` + PresentationContext + `"`

type LangMap map[string][]string

type LabelValue struct {
	Label LangMap `json:"label"`
	Value LangMap `json:"value"`
}

type ImageService struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Profile string `json:"profile"`
}

// ImageBody is an Image content resource. Width, height, and service are only
// populated on the painting body; annotation image bodies carry just id and
// format.
type ImageBody struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Format  string         `json:"format"`
	Width   int            `json:"width,omitempty"`
	Height  int            `json:"height,omitempty"`
	Service []ImageService `json:"service,omitempty"`
}

type TextualBody struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

// Annotation is a Presentation API annotation. Body is either a single
// TextualBody or a []interface{} of [TextualBody, ImageBody...]; consumers
// depend on that object-vs-array distinction, so it cannot be normalized.
type Annotation struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Motivation string      `json:"motivation"`
	Body       interface{} `json:"body"`
	Target     string      `json:"target"`
}

type AnnotationPage struct {
	ID    string       `json:"id"`
	Type  string       `json:"type"`
	Items []Annotation `json:"items"`
}

type Canvas struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Items       []AnnotationPage `json:"items"`
	Annotations []AnnotationPage `json:"annotations,omitempty"`
}

type Manifest struct {
	Context           string       `json:"@context"`
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	Label             LangMap      `json:"label"`
	Metadata          []LabelValue `json:"metadata,omitempty"`
	Summary           LangMap      `json:"summary,omitempty"`
	RequiredStatement *LabelValue  `json:"requiredStatement,omitempty"`
	Items             []Canvas     `json:"items"`
}

// BuildManifest projects a fully loaded story aggregate (annotations and
// their images ordered by ordinal) into a Presentation API v3 manifest. It is
// a total function: every failure mode lives in the aggregate load.
func BuildManifest(story *models.Story, baseURL string) *Manifest {
	manifestID := baseURL + "/api/manifest/" + story.ID
	canvasID := manifestID + "/canvas/1"

	m := &Manifest{
		Context: PresentationContext,
		ID:      manifestID,
		Type:    "Manifest",
		Label:   LangMap{"en": []string{story.Title}},
	}

	if story.Author != nil {
		m.Metadata = []LabelValue{{
			Label: LangMap{"en": []string{"Author"}},
			Value: LangMap{"en": []string{*story.Author}},
		}}
	}
	if story.Description != nil {
		m.Summary = LangMap{"en": []string{*story.Description}}
	}
	if story.Attribution != nil {
		m.RequiredStatement = &LabelValue{
			Label: LangMap{"en": []string{"Attribution"}},
			Value: LangMap{"en": []string{*story.Attribution}},
		}
	}

	canvas := Canvas{
		ID:     canvasID,
		Type:   "Canvas",
		Width:  story.ImageWidth,
		Height: story.ImageHeight,
		Items: []AnnotationPage{{
			ID:   manifestID + "/canvas/1/page",
			Type: "AnnotationPage",
			Items: []Annotation{{
				ID:         manifestID + "/canvas/1/page/image",
				Type:       "Annotation",
				Motivation: "painting",
				Body: ImageBody{
					ID:     story.ImageURL + "/full/max/0/default.jpg",
					Type:   "Image",
					Format: "image/jpeg",
					Width:  story.ImageWidth,
					Height: story.ImageHeight,
					Service: []ImageService{{
						ID:      story.ImageURL,
						Type:    "ImageService3",
						Profile: "level1",
					}},
				},
				Target: canvasID,
			}},
		}},
	}

	if len(story.Annotations) > 0 {
		page := AnnotationPage{
			ID:    manifestID + "/canvas/1/annotations",
			Type:  "AnnotationPage",
			Items: make([]Annotation, 0, len(story.Annotations)),
		}

		for _, a := range story.Annotations {
			textBody := TextualBody{
				Type:     "TextualBody",
				Value:    a.Text,
				Language: "en",
				Format:   "text/plain",
			}

			var body interface{} = textBody
			if len(a.Images) > 0 {
				bodies := make([]interface{}, 0, len(a.Images)+1)
				bodies = append(bodies, textBody)
				for _, img := range a.Images {
					bodies = append(bodies, ImageBody{
						ID:     img.ImageURL,
						Type:   "Image",
						Format: "image/jpeg",
					})
				}
				body = bodies
			}

			page.Items = append(page.Items, Annotation{
				ID:         manifestID + "/canvas/1/annotations/" + a.ID,
				Type:       "Annotation",
				Motivation: "commenting",
				Body:       body,
				Target: fmt.Sprintf("%s#xywh=%d,%d,%d,%d", canvasID,
					roundCoord(a.X), roundCoord(a.Y), roundCoord(a.Width), roundCoord(a.Height)),
			})
		}

		canvas.Annotations = []AnnotationPage{page}
	}

	m.Items = []Canvas{canvas}
	return m
}

// roundCoord rounds to the nearest integer, halves away from zero.
func roundCoord(v float64) int {
	return int(math.Round(v))
}
