// Package net implements the net binding contract (spec §6): a raw
// TCP socket surface for script code, grounded on
// original_source/src/net.rs's connect/write/read/close shape and
// adapted onto internal/eventloop's TCPConnect/TCPReadStart/TCPWrite/
// TCPClose. Data crossing the JS boundary is base64-encoded since
// RegisterFunc's bridge only carries JSON-representable scalars.
package net

import (
	"encoding/base64"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/eventloop"
)

// Install registers the net binding and the net.connect polyfill.
func Install(reg *bindings.Registry, handle *eventloop.LoopHandle, q *binding.Queue) error {
	connect := func(addr string, cbID int) {
		handle.TCPConnect(addr, func(id int, err error) {
			f := q.New(func(result any, err error) {
				_ = reg.InvokeCallback(cbID, false, err, result)
			})
			q.Complete(f, id, err)
		})
	}
	if err := reg.Func("net", "connect", "__netConnect", connect); err != nil {
		return err
	}

	readStart := func(id int, dataCbID int) {
		stream := binding.NewStream(q,
			func(data any) { _ = reg.InvokeCallback(dataCbID, true, nil, data) },
			func(err error) { _ = reg.InvokeCallback(dataCbID, false, err, nil) },
			func() { _ = reg.InvokeCallback(dataCbID, false, nil, map[string]any{"eof": true}) },
		)
		handle.TCPReadStart(id,
			func(buf []byte) {
				stream.Emit(map[string]any{"data": base64.StdEncoding.EncodeToString(buf)})
			},
			func(err error) { stream.Fail(err) },
			func() { stream.Done() },
		)
	}
	if err := reg.Func("net", "readStart", "__netReadStart", readStart); err != nil {
		return err
	}

	write := func(id int, b64 string, cbID int) error {
		buf, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return err
		}
		handle.TCPWrite(id, buf, func(err error) {
			f := q.New(func(result any, err error) {
				_ = reg.InvokeCallback(cbID, false, err, nil)
			})
			q.Complete(f, nil, err)
		})
		return nil
	}
	if err := reg.Func("net", "write", "__netWrite", write); err != nil {
		return err
	}

	closeConn := func(id int) { handle.TCPClose(id) }
	if err := reg.Func("net", "close", "__netClose", closeConn); err != nil {
		return err
	}

	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	if err := reg.Func("net", "encodeStr", "__netEncodeStr", encode); err != nil {
		return err
	}
	decode := func(b64 string) (string, error) {
		buf, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
	if err := reg.Func("net", "decodeStr", "__netDecodeStr", decode); err != nil {
		return err
	}

	reg.Raw(netJS)
	return nil
}

const netJS = `
(function() {
	function Socket(id) {
		this._id = id;
		this._onData = [];
		this._onEnd = [];
		this._onError = [];
		var self = this;
		var dataCbID = __registerCallback(function(err, chunk) {
			if (err) {
				self._onError.forEach(function(fn) { fn(err); });
				return;
			}
			if (chunk && chunk.eof) {
				self._onEnd.forEach(function(fn) { fn(); });
				return;
			}
			var text = __netDecodeStr(chunk.data);
			self._onData.forEach(function(fn) { fn(text); });
		});
		__netReadStart(id, dataCbID);
	}
	Socket.prototype.on = function(event, fn) {
		if (event === 'data') this._onData.push(fn);
		else if (event === 'end') this._onEnd.push(fn);
		else if (event === 'error') this._onError.push(fn);
		return this;
	};
	Socket.prototype.write = function(data) {
		var b64 = __netEncodeStr(String(data));
		return __asPromise((function(self) {
			return function(cbID) { __netWrite(self._id, b64, cbID); };
		})(this));
	};
	Socket.prototype.end = function() { __netClose(this._id); };

	globalThis.net = globalThis.net || {};
	net.connect = function(port, host) {
		var addr = host ? (host + ':' + port) : (':' + port);
		return __asPromise(function(cbID) { __netConnect(addr, cbID); }).then(function(id) {
			return new Socket(id);
		});
	};
})();
`
