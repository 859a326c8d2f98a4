package bake

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gorustyt/solonav/detour"
)

// PackNavMesh validates and packs params. A packer failure is retried once
// with the detail mesh stripped; stripped reports whether that happened.
// Validation failures are returned as is.
func PackNavMesh(params *detour.DtNavMeshCreateParams, log *zap.Logger) (data []byte, stripped bool, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := params.Validate(); err != nil {
		return nil, false, err
	}
	data, err = detour.DtCreateNavMeshData(params)
	if err == nil {
		return data, false, nil
	}
	var packErr *detour.PackError
	if !errors.As(err, &packErr) {
		return nil, false, err
	}
	log.Warn("navmesh pack failed, retrying without detail mesh", zap.Error(err))

	retry := *params
	retry.DetailMeshes = nil
	retry.DetailVerts = nil
	retry.DetailVertsCount = 0
	retry.DetailTris = nil
	retry.DetailTriCount = 0
	data, err = detour.DtCreateNavMeshData(&retry)
	if err != nil {
		return nil, true, fmt.Errorf("retry without detail: %w", err)
	}
	return data, true, nil
}

// WriteNavMesh packs params and writes the result to path. The target is
// created or replaced only when packing succeeded.
func WriteNavMesh(params *detour.DtNavMeshCreateParams, path string, log *zap.Logger) (stripped bool, err error) {
	data, stripped, err := PackNavMesh(params, log)
	if err != nil {
		return stripped, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return stripped, fmt.Errorf("write %s: %w", path, err)
	}
	return stripped, nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	err = os.Rename(tmpName, path)
	return err
}
