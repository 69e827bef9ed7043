// internal/configserver/server.go

// Package configserver serves YAML property files from a directory as
// per-application environments.
package configserver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"bookshop/internal/config"
	"bookshop/internal/web"
)

const sharedName = "application"

type Server struct {
	files  fs.FS
	logger zerolog.Logger
}

// NewServer reads property files from files, typically os.DirFS(dir).
func NewServer(files fs.FS, logger zerolog.Logger) *Server {
	return &Server{files: files, logger: logger}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/{application}/{profile}", s.HandleEnvironment)
}

func (s *Server) HandleEnvironment(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "application")
	profiles := strings.Split(chi.URLParam(r, "profile"), ",")

	env, err := s.Environment(app, profiles)
	if err != nil {
		s.logger.Error().Err(err).Str("application", app).Msg("environment failed")
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, env)
}

// Environment collects the property sources of app, highest priority first.
// Later profiles win over earlier ones. Missing files are skipped.
func (s *Server) Environment(app string, profiles []string) (*config.Environment, error) {
	env := &config.Environment{
		Name:            app,
		Profiles:        profiles,
		PropertySources: []config.PropertySource{},
	}

	var names []string
	for i := len(profiles) - 1; i >= 0; i-- {
		names = append(names, app+"-"+profiles[i])
	}
	names = append(names, app)
	for i := len(profiles) - 1; i >= 0; i-- {
		names = append(names, sharedName+"-"+profiles[i])
	}
	names = append(names, sharedName)

	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] || strings.ContainsAny(name, `/\`) {
			continue
		}
		seen[name] = true

		src, ok, err := s.load(name)
		if err != nil {
			return nil, err
		}
		if ok {
			env.PropertySources = append(env.PropertySources, src)
		}
	}
	return env, nil
}

func (s *Server) load(name string) (config.PropertySource, bool, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		file := name + ext
		data, err := fs.ReadFile(s.files, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return config.PropertySource{}, false, fmt.Errorf("read %s: %w", file, err)
		}

		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return config.PropertySource{}, false, fmt.Errorf("parse %s: %w", file, err)
		}
		source := map[string]string{}
		flatten("", doc, source)
		return config.PropertySource{Name: file, Source: source}, true, nil
	}
	return config.PropertySource{}, false, nil
}

// flatten turns nested maps into dotted keys and lists into indexed keys.
func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, t[k], out)
		}
	case []any:
		for i, item := range t {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), item, out)
		}
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(t)
	}
}

// DirFS is os.DirFS for a directory that must exist.
func DirFS(dir string) (fs.FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", filepath.Clean(dir))
	}
	return os.DirFS(dir), nil
}
