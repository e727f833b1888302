package pipeline

import (
	"github.com/frankii91/sharp-web-resizing-images/core"
)

// MetaTagsFile is the name of the request-metadata artifact.
const MetaTagsFile = "metatags.json"

// metaFormat tags the metadata unit; it has no FormatSpec.
const metaFormat core.Format = "json"

// Plan expands req into its derivative tasks: resizes in the outer loop,
// formats in the inner loop, in request order. A request without resizes
// yields one pass-through group at the original dimensions. Single-variant
// and stream requests are limited to one resize and one format.
func Plan(req *core.Request) []core.DerivativeTask {
	resizes := make([]*core.ResizeSpec, 0, len(req.Resizes))
	for i := range req.Resizes {
		resizes = append(resizes, &req.Resizes[i])
	}
	if len(resizes) == 0 {
		resizes = []*core.ResizeSpec{nil}
	}
	formats := req.Formats

	if req.Single || req.Destination == core.BackendStream {
		resizes = resizes[:1]
		if len(formats) > 1 {
			formats = formats[:1]
		}
	}

	tasks := make([]core.DerivativeTask, 0, len(resizes)*len(formats))
	for _, r := range resizes {
		for _, f := range formats {
			tasks = append(tasks, core.DerivativeTask{
				Index:       len(tasks),
				Resize:      r,
				Format:      f.Name,
				Spec:        f.Spec,
				Filename:    req.BaseName + r.Suffix() + "." + f.Name.Extension(),
				ContentType: f.Name.ContentType(),
			})
		}
	}
	return tasks
}

// metaTask is the extra unit that persists the request document.
func metaTask(index int) core.DerivativeTask {
	return core.DerivativeTask{
		Index:       index,
		Format:      metaFormat,
		Filename:    MetaTagsFile,
		ContentType: "application/json",
	}
}

func isMeta(t core.DerivativeTask) bool { return t.Format == metaFormat && t.Spec == nil }
