// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/ringhttp/httpx"
	"code.hybscloud.com/ringhttp/logx"
)

// indexFiles are served for a directory route, first match wins.
var indexFiles = []string{"index.html", "index.htm"}

// addStaticRoute maps filePath's content into memory and registers GET
// and HEAD routes for it.
func addStaticRoute(filePath, routePath string) {
	info, err := os.Stat(filePath)
	if err != nil {
		logx.Sync().Fatal().Str("file", filePath).Err(err).Msg("stat failed")
	}
	size := int(info.Size())
	if size == 0 {
		logx.Sync().Warn().Str("file", filePath).Msg("skipping empty file")
		return
	}

	fd, err := unix.Open(filePath, unix.O_RDONLY, 0)
	if err != nil {
		logx.Sync().Fatal().Str("file", filePath).Err(err).Msg("open failed")
	}
	content, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	// The mapping stays for the process lifetime; the fd is not needed
	// once mapped.
	_ = unix.Close(fd)
	if err != nil {
		logx.Sync().Fatal().Str("file", filePath).Err(err).Msg("mmap failed")
	}

	contentType := mimeByExt(filepath.Ext(filePath))
	Get(routePath, func(*httpx.Request) Response {
		return File(contentType, content)
	})
	Head(routePath, func(*httpx.Request) Response {
		return FileHead(contentType, size)
	})

	logx.Sync().Info().
		Str("route", routePath).
		Str("file", filePath).
		Msg("static route added")
}

// configureStaticRoutes walks the document root and registers a route per
// regular file, plus directory routes for index files.
func configureStaticRoutes() {
	root, err := filepath.Abs(serverEnv.rootPath)
	if err != nil {
		logx.Sync().Fatal().Str("root", serverEnv.rootPath).Err(err).Msg("bad root path")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		logx.Sync().Fatal().Str("root", root).Msg("root path is not a directory")
	}

	for _, index := range indexFiles {
		indexPath := filepath.Join(root, index)
		if fi, err := os.Stat(indexPath); err == nil && fi.Mode().IsRegular() {
			addStaticRoute(indexPath, "/")
			break
		}
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			addStaticRoute(path, "/"+filepath.ToSlash(rel))
			return nil
		}
		if d.IsDir() && path != root {
			for _, index := range indexFiles {
				indexPath := filepath.Join(path, index)
				if fi, err := os.Stat(indexPath); err == nil && fi.Mode().IsRegular() {
					rel, err := filepath.Rel(root, path)
					if err != nil {
						return err
					}
					dirRoute := "/" + filepath.ToSlash(rel)
					addStaticRoute(indexPath, dirRoute)
					addStaticRoute(indexPath, strings.TrimSuffix(dirRoute, "/")+"/")
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		logx.Sync().Fatal().Err(err).Msg("document root walk failed")
	}
}
