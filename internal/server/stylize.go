package server

import (
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/imageio"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/store"
	"github.com/matzehuels/stylewct/pkg/tensor"
	"github.com/matzehuels/stylewct/pkg/wct"
)

// Response headers set by /v1/stylize.
const (
	HeaderRunID    = "X-Run-ID"
	HeaderCache    = "X-Cache"
	HeaderCacheKey = "X-Cache-Key"
)

func (s *Server) handleStylize(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	w.Header().Set(HeaderRunID, runID)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:      errors.ErrCodeInvalidInput,
				Message:   "upload exceeds " + strconv.FormatInt(s.cfg.MaxUploadBytes, 10) + " bytes",
				RequestID: middleware.GetReqID(r.Context()),
			})
			return
		}
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.readPair(r, &opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.cfg.Runner.Execute(r.Context(), pair, opts)
	s.record(r, runID, pair.Name, opts, res, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set(HeaderCacheKey, res.Key)
	if res.CacheHit {
		w.Header().Set(HeaderCache, "HIT")
	} else {
		w.Header().Set(HeaderCache, "MISS")
	}
	if err := imageio.Write(w, res.Image, imageio.FormatPNG); err != nil {
		s.logger.Error("write response", "err", err, "run", runID)
	}
}

// requestOptions overlays query parameters on the server defaults.
func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.cfg.Defaults
	opts.Targets = append([]pipeline.Level(nil), opts.Targets...)
	q := r.URL.Query()

	if v := q.Get("method"); v != "" {
		m, err := wct.ParseMethod(v)
		if err != nil {
			return opts, err
		}
		opts.Method = m
	}
	if v := q.Get("targets"); v != "" {
		levels, err := pipeline.ParseLevels(strings.Split(v, ","))
		if err != nil {
			return opts, err
		}
		opts.Targets = levels
	}
	for name, dst := range map[string]*float64{"gamma": &opts.Gamma, "delta": &opts.Delta} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return opts, errors.New(errors.ErrCodeInvalidWeight, "%s must be a number, got %q", name, v)
			}
			*dst = f
		}
	}
	for name, dst := range map[string]*bool{
		"schedule":         &opts.Schedule,
		"reverse_schedule": &opts.ReverseSchedule,
		"refresh":          &opts.Refresh,
	} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, errors.New(errors.ErrCodeInvalidInput, "%s must be a boolean, got %q", name, v)
			}
			*dst = b
		}
	}
	opts.Saliency = r.MultipartForm != nil && len(r.MultipartForm.File["saliency"]) > 0
	return opts, opts.ValidateAndSetDefaults()
}

// readPair decodes the uploaded images.
func (s *Server) readPair(r *http.Request, opts *pipeline.Options) (pipeline.Pair, error) {
	content, contentName, err := s.readImage(r, "content", opts.Targets)
	if err != nil {
		return pipeline.Pair{}, err
	}
	style, styleName, err := s.readImage(r, "style", opts.Targets)
	if err != nil {
		return pipeline.Pair{}, err
	}
	pair := pipeline.Pair{
		Name:    stem(contentName) + "-" + stem(styleName),
		Content: content,
		Style:   style,
	}
	if opts.Saliency {
		f, _, err := openPart(r, "saliency")
		if err != nil {
			return pipeline.Pair{}, err
		}
		defer f.Close()
		sal, err := imageio.ReadSaliency(f)
		if err != nil {
			return pipeline.Pair{}, errors.Wrap(errors.GetCode(err), err, "saliency")
		}
		pair.Saliency = sal
	}
	return pair, nil
}

func (s *Server) readImage(r *http.Request, field string, levels []pipeline.Level) (*tensor.Tensor, string, error) {
	f, name, err := openPart(r, field)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, err := imageio.Read(f, s.cfg.Image)
	if err != nil {
		return nil, "", errors.Wrap(errors.GetCode(err), err, "%s image", field)
	}
	if s.cfg.Align != nil {
		if img, err = s.cfg.Align(img, levels); err != nil {
			return nil, "", errors.Wrap(errors.GetCode(err), err, "%s image", field)
		}
	}
	return img, name, nil
}

func openPart(r *http.Request, field string) (multipart.File, string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "missing %q upload", field)
	}
	if err := errors.ValidateUploadName(hdr.Filename); err != nil {
		f.Close()
		return nil, "", err
	}
	return f, hdr.Filename, nil
}

// record stores the run; failures to record never fail the request.
func (s *Server) record(r *http.Request, runID, pair string, opts pipeline.Options, res *pipeline.Result, err error) {
	rec := store.NewRecord("api", pair, opts, res, err)
	rec.ID = runID
	if serr := s.cfg.Store.Insert(r.Context(), rec); serr != nil {
		s.logger.Warn("cannot record run", "err", serr)
	}
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}
