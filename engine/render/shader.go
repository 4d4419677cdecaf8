package render

// meshShaderWGSL flat-shades position-only geometry. Faceted normals are
// reconstructed from screen-space derivatives of the world position, so
// meshes with no normal attribute still read as solid.
const meshShaderWGSL = `
struct FrameUniform {
    view_proj: mat4x4<f32>,
};

struct MeshUniform {
    model: mat4x4<f32>,
    color: vec4<f32>,
};

@group(0) @binding(0) var<uniform> frame: FrameUniform;
@group(1) @binding(0) var<uniform> mesh: MeshUniform;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) world_pos: vec3<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> VertexOutput {
    var out: VertexOutput;
    let world = mesh.model * vec4<f32>(position, 1.0);
    out.world_pos = world.xyz;
    out.position = frame.view_proj * world;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let normal = normalize(cross(dpdx(in.world_pos), dpdy(in.world_pos)));
    let light_dir = normalize(vec3<f32>(0.4, 0.8, 0.6));
    let diffuse = max(dot(normal, light_dir), 0.0);
    let shade = 0.25 + 0.75 * diffuse;
    return vec4<f32>(mesh.color.rgb * shade, mesh.color.a);
}
`
