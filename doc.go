// Package wasivfs provides the guest-facing filesystem of a WASI preview1
// host written in Go.
//
// Guest code sees a virtual tree of files, directories and symbolic links.
// Every descriptor carries a rights bitmask and an operation the rights do
// not allow fails with an errno instead of touching the host.
//
// # Architecture Overview
//
//	wasivfs/             Root package with the guest Memory interface
//	├── abi/             Preview1 errno, rights, flags and wire records
//	├── arena/           Generational-index store for inodes
//	├── fdtable/         Descriptor table with monotonic numbering
//	├── vfs/             Filesystem state: preopens, resolver, operations
//	├── repo/            Backing storage (memory, bbolt, PostgreSQL, host)
//	├── config/          YAML and environment configuration
//	├── errors/          Structured host-side error types
//	├── wasi/preview1/   wazero host module exposing the filesystem
//	└── cmd/wasifs/      Inspection CLI and terminal browser
//
// # Quick Start
//
// Mount a directory and expose it to a guest:
//
//	fs, err := vfs.New([]string{"/srv/sandbox"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fs.Shutdown()
//
//	rt := wazero.NewRuntime(ctx)
//	defer rt.Close(ctx)
//
//	if _, err := preview1.NewHost(fs).Instantiate(ctx, rt); err != nil {
//	    log.Fatal(err)
//	}
//
// The guest sees the directory as descriptor 3 through fd_prestat_get and
// fd_prestat_dir_name.
//
// # Rights
//
// Preopened directories receive every preview1 right. Descriptors derived
// through path_open can only narrow them: the requested rights must be a
// subset of the parent's inheriting rights, and directories drop the byte
// stream rights.
//
// # Logging
//
// Packages log through zap and are silent by default:
//
//	vfs.SetLogger(zapLogger)
//	preview1.SetLogger(zapLogger)
package wasivfs
